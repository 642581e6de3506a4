package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-fsexport/pkg/pipeline/model"
)

// emit pushes out to the output of the step and notifies the pipeline options.
func emit[I, O any](ctx context.Context, pipe *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], out O, start time.Time, computation time.Duration) error {
	// check the context again so that running goroutines stop adding elements to the pipeline
	select {
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
	case output.Output <- out:
	}

	for _, opt := range pipe.opts {
		err := opt.OnStepOutput(input.Details, output.Details, time.Since(start)-computation, computation)
		if err != nil {
			return errors.Wrapf(err, "go routine %d: unable to run step output option", goIdx)
		}
	}

	return nil
}

func sequentialOneToManyFn[I, O any](ctx context.Context, pipe *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			outs, err := oneToManyFn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d", goIdx)
			}
			endFn := time.Since(startFn)
			for _, out := range outs {
				err = emit(ctx, pipe, goIdx, input, output, out, start, endFn)
				if err != nil {
					return err
				}
			}
		}
	}
}

func oneToMany[I, O any](ctx context.Context, pipe *Pipeline, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	if output.Details.Concurrent <= 1 {
		output.Details.Concurrent = 1

		return sequentialOneToManyFn(ctx, pipe, 0, input, output, oneToManyFn)
	}
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	// each consumer stops as soon as one of them fails
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		localGoIdx := goIdx
		errGrp.Go(func() error {
			return sequentialOneToManyFn(dCtx, pipe, localGoIdx, input, output, oneToManyFn)
		})
	}

	return errGrp.Wait()
}

func prepareStep[I, O any](pipe *Pipeline, name string, input *model.Step[I], opts ...StepOption[O]) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	if name == "" {
		return nil, ErrNameMustBeSet
	}
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       model.NormalStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: make(chan O),
	}
	for _, opt := range opts {
		opt(step)
	}
	for _, opt := range pipe.opts {
		err := opt.PrepareStep(input.Details, step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run before step function")
		}
	}

	return step, nil
}

func addStep[I, O any](pipe *Pipeline, input *model.Step[I], step *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) {
	errC := make(chan error, 1)
	pipe.errcList.add(newErrorChan(step.Details.Name, errC))

	go func() {
		defer func() {
			close(step.Output)
			close(errC)
		}()
		err := oneToMany(pipe.ctx, pipe, input, step, oneToManyFn)
		if err != nil {
			errC <- err
		}
	}()
}

// AddStepOneToOne adds a step producing exactly one output for each input.
func AddStepOneToOne[I, O any](pipe *Pipeline, name string, input *model.Step[I], oneToOneFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	step, err := prepareStep(pipe, name, input, opts...)
	if err != nil {
		return nil, err
	}
	addStep(pipe, input, step, func(ctx context.Context, in I) ([]O, error) {
		out, err := oneToOneFn(ctx, in)
		if err != nil {
			return nil, err
		}

		return []O{out}, nil
	})

	return step, nil
}

// AddStepOneToMany adds a step producing any number of outputs for each input.
func AddStepOneToMany[I, O any](pipe *Pipeline, name string, input *model.Step[I], oneToManyFn func(context.Context, I) ([]O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	step, err := prepareStep(pipe, name, input, opts...)
	if err != nil {
		return nil, err
	}
	addStep(pipe, input, step, oneToManyFn)

	return step, nil
}
