package pipeline_test

import (
	"context"
	"testing"

	"github.com/askiada/go-fsexport/pkg/pipeline"
	"github.com/askiada/go-fsexport/pkg/pipeline/model"
)

func addIntRoot(t *testing.T, pipe *pipeline.Pipeline, total int) *model.Step[int] {
	t.Helper()

	step, err := pipeline.AddRootStep(pipe, "root step", func(ctx context.Context, rootChan chan<- int) error {
		for i := 0; i < total; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("unable to add root step: %v", err)
	}

	return step
}

func collectSink[I any](t *testing.T, pipe *pipeline.Pipeline, input *model.Step[I]) *[]I {
	t.Helper()

	res := []I{}
	err := pipeline.AddSink(pipe, "sink", input, func(ctx context.Context, in I) error {
		res = append(res, in)

		return nil
	})
	if err != nil {
		t.Fatalf("unable to add sink: %v", err)
	}

	return &res
}
