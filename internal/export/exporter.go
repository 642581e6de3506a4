// Package export converts the FreeSurfer volumes of every session of an experiment into the NIfTI volumes used
// downstream.
//
// Each session goes through the same six steps (see Catalog). A step is skipped when its destination already
// exists, so an interrupted run can be resumed. Destinations are written under a temporary name and renamed once
// the tool succeeded, a crashed run never leaves a partial volume behind.
//
// Failures are contained: a missing input or a failing tool stops the remaining steps of the session only, and a
// subject whose sessions cannot be listed does not stop the other subjects. The Summary returned by Run lists the
// outcome of every session.
package export

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/askiada/go-fsexport/internal/command"
	"github.com/askiada/go-fsexport/internal/layout"
	"github.com/askiada/go-fsexport/pkg/pipeline"
	"github.com/askiada/go-fsexport/pkg/pipeline/model"
)

// Names of the pipeline steps of a run.
const (
	SubjectsStep = "subjects"
	SessionsStep = "sessions"
	ExportStep   = "export"
	SummaryStep  = "summary"
)

const partialPrefix = ".partial."

// Exporter runs the steps of every session of an experiment.
type Exporter struct {
	layout       layout.Layout
	tools        command.Tools
	runner       command.Runner
	workers      int
	dryRun       bool
	subjects     []string
	pipelineOpts []model.PipelineOption
}

type Option func(e *Exporter)

// WithWorkers sets the number of sessions exported concurrently.
func WithWorkers(workers int) Option {
	return func(e *Exporter) {
		e.workers = workers
	}
}

// WithDryRun logs the commands instead of running them.
func WithDryRun(dryRun bool) Option {
	return func(e *Exporter) {
		e.dryRun = dryRun
	}
}

// WithSubjects restricts the run to the given subjects instead of every subject of the experiment.
func WithSubjects(subjects ...string) Option {
	return func(e *Exporter) {
		e.subjects = subjects
	}
}

// WithPipelineOptions observes the pipeline of each run, see the measure and drawer packages.
func WithPipelineOptions(opts ...model.PipelineOption) Option {
	return func(e *Exporter) {
		e.pipelineOpts = append(e.pipelineOpts, opts...)
	}
}

// New creates an exporter. The root of lay is replaced by the root given to Run.
func New(lay layout.Layout, tools command.Tools, runner command.Runner, opts ...Option) *Exporter {
	exp := &Exporter{
		layout:  lay,
		tools:   tools,
		runner:  runner,
		workers: 1,
	}
	for _, opt := range opts {
		opt(exp)
	}
	if exp.workers < 1 {
		exp.workers = 1
	}

	return exp
}

type sessionTask struct {
	subject string
	session string
	err     error
}

type taskResult struct {
	session *SessionResult
	subject *SubjectFailure
}

// Run exports every session of every subject of root/experiment.
// It returns an error when the experiment cannot be listed or ctx is done; failures of subjects and sessions are
// only reported in the summary.
func (e *Exporter) Run(ctx context.Context, root, experiment string) (*Summary, error) {
	lay := e.layout
	lay.Root = root

	summary := &Summary{
		RunID:      uuid.NewString(),
		Root:       root,
		Experiment: experiment,
		DryRun:     e.dryRun,
		Start:      time.Now(),
	}
	logger := zerolog.Ctx(ctx).With().Str("run", summary.RunID).Str("experiment", experiment).Logger()
	ctx = logger.WithContext(ctx)

	subjects, err := e.listSubjects(lay, experiment)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("subjects", len(subjects)).Int("workers", e.workers).Bool("dry_run", e.dryRun).Msg("export started")

	err = e.runPipeline(ctx, lay, experiment, subjects, summary)
	if err == nil {
		// sessions stopped by a cancellation are reported as failed, the run is still interrupted
		err = ctx.Err()
	}
	summary.End = time.Now()
	summary.sort()
	if err != nil {
		return summary, errors.Wrap(err, "export interrupted")
	}

	return summary, nil
}

func (e *Exporter) listSubjects(lay layout.Layout, experiment string) ([]string, error) {
	expDir := lay.ExperimentDir(experiment)
	if len(e.subjects) == 0 {
		subjects, err := lay.Subjects(experiment)
		if err != nil {
			return nil, &FilesystemError{Op: "list subjects", Path: expDir, Err: err}
		}

		return subjects, nil
	}

	info, err := os.Stat(expDir)
	if err == nil && !info.IsDir() {
		err = errors.New("not a directory")
	}
	if err != nil {
		return nil, &FilesystemError{Op: "list subjects", Path: expDir, Err: err}
	}

	seen := make(map[string]struct{}, len(e.subjects))
	subjects := make([]string, 0, len(e.subjects))
	for _, subject := range e.subjects {
		if _, ok := seen[subject]; ok {
			continue
		}
		seen[subject] = struct{}{}
		subjects = append(subjects, subject)
	}

	return subjects, nil
}

func (e *Exporter) runPipeline(ctx context.Context, lay layout.Layout, experiment string, subjects []string, summary *Summary) error {
	pipe, err := pipeline.New(ctx, e.pipelineOpts...)
	if err != nil {
		return errors.Wrap(err, "unable to create pipeline")
	}

	subjectStep, err := pipeline.AddRootStep(pipe, SubjectsStep, func(ctx context.Context, rootChan chan<- string) error {
		for _, subject := range subjects {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- subject:
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unable to add subjects step")
	}

	sessionStep, err := pipeline.AddStepOneToMany(pipe, SessionsStep, subjectStep, func(ctx context.Context, subject string) ([]sessionTask, error) {
		sessions, err := lay.Sessions(experiment, subject)
		if err != nil {
			return []sessionTask{{
				subject: subject,
				err:     &FilesystemError{Op: "list sessions", Path: lay.SessionsDir(experiment, subject), Err: err},
			}}, nil
		}
		if len(sessions) == 0 {
			zerolog.Ctx(ctx).Warn().Str("subject", subject).Msg("subject has no session")
		}

		tasks := make([]sessionTask, len(sessions))
		for i, session := range sessions {
			tasks[i] = sessionTask{subject: subject, session: session}
		}

		return tasks, nil
	})
	if err != nil {
		return errors.Wrap(err, "unable to add sessions step")
	}

	// results are collected by the export step, a session interrupted by a cancellation is reported even though
	// the pipeline does not forward it anymore
	var mu sync.Mutex
	exportStep, err := pipeline.AddStepOneToOne(pipe, ExportStep, sessionStep, func(ctx context.Context, task sessionTask) (taskResult, error) {
		var res taskResult
		if task.err != nil {
			res.subject = &SubjectFailure{Subject: task.subject, Err: task.err}
		} else {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			session := e.RunSession(ctx, lay, experiment, task.subject, task.session)
			res.session = &session
		}

		mu.Lock()
		defer mu.Unlock()
		if res.subject != nil {
			summary.Subjects = append(summary.Subjects, *res.subject)
		}
		if res.session != nil {
			summary.Sessions = append(summary.Sessions, *res.session)
		}

		return res, nil
	}, pipeline.StepConcurrency[taskResult](e.workers))
	if err != nil {
		return errors.Wrap(err, "unable to add export step")
	}

	done := 0
	err = pipeline.AddSink(pipe, SummaryStep, exportStep, func(ctx context.Context, res taskResult) error {
		done++
		logger := zerolog.Ctx(ctx)
		if res.subject != nil {
			logger.Debug().Str("subject", res.subject.Subject).Int("done", done).Msg("subject skipped")

			return nil
		}
		logger.Debug().
			Str("subject", res.session.Subject).
			Str("session", res.session.Session).
			Bool("failed", res.session.Failed()).
			Int("done", done).
			Msg("session done")

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unable to add summary step")
	}

	// Run returns once every step stopped, the summary is not modified anymore
	return pipe.Run()
}

// RunSession runs the steps of one session. The first failing step stops the session.
func (e *Exporter) RunSession(ctx context.Context, lay layout.Layout, experiment, subject, session string) SessionResult {
	start := time.Now()
	res := SessionResult{
		Experiment: experiment,
		Subject:    subject,
		Session:    session,
		ID:         layout.SubjectID(experiment, subject, session),
	}
	logger := zerolog.Ctx(ctx).With().Str("subject", subject).Str("session", session).Logger()
	ctx = logger.WithContext(ctx)

	inputDir := lay.InputDir(experiment, subject, session)
	outputDir := lay.OutputDir(experiment, subject, session)
	// volumes planned by earlier steps of a dry run
	planned := make(map[string]struct{})

	for _, step := range Catalog() {
		if res.Err == nil {
			if err := ctx.Err(); err != nil {
				res.Err = err
			}
		}
		if res.Err != nil {
			res.Steps = append(res.Steps, StepResult{Step: step.Name, Destination: step.Destination, Outcome: OutcomeNotReached})

			continue
		}

		stepRes, err := e.runStep(ctx, step, inputDir, outputDir, planned)
		res.Steps = append(res.Steps, stepRes)
		if err != nil {
			res.Err = errors.Wrapf(err, "%s", step.Name)
		}
	}
	res.Duration = time.Since(start)

	return res
}

func (e *Exporter) runStep(ctx context.Context, step Step, inputDir, outputDir string, planned map[string]struct{}) (StepResult, error) {
	logger := zerolog.Ctx(ctx).With().Str("step", step.Name).Logger()
	dst := filepath.Join(outputDir, step.Destination)
	res := StepResult{Step: step.Name, Destination: dst, Outcome: OutcomeFailed}

	exists, err := layout.Exists(dst)
	if err != nil {
		return res, &FilesystemError{Op: "stat", Path: dst, Err: err}
	}
	if exists {
		res.Outcome = OutcomeSkipped
		logger.Debug().Str("destination", dst).Msg("destination exists, skipping")

		return res, nil
	}

	src := step.SourcePath(inputDir, outputDir)
	srcExists, err := layout.Exists(src)
	if err != nil {
		return res, &FilesystemError{Op: "stat", Path: src, Err: err}
	}
	if _, ok := planned[src]; !srcExists && !ok {
		return res, &MissingInputError{Step: step.Name, Path: src}
	}

	if e.dryRun {
		cmd := step.Command(e.tools, src, dst)
		res.Outcome = OutcomePlanned
		res.Command = cmd.String()
		planned[dst] = struct{}{}
		logger.Info().Str("command", res.Command).Msg("dry run")

		return res, nil
	}

	partial := filepath.Join(outputDir, partialPrefix+step.Destination)
	// leftover of an interrupted run, some tools refuse to overwrite
	err = removeIfExists(partial)
	if err != nil {
		return res, err
	}

	cmd := step.Command(e.tools, src, partial)
	res.Command = cmd.String()
	logger.Debug().Str("command", res.Command).Msg("running")

	start := time.Now()
	output, err := e.runner.Run(ctx, cmd)
	res.Duration = time.Since(start)
	if err != nil {
		logger.Warn().Err(err).Str("command", res.Command).Bytes("output", output).Msg("command failed")
		_ = removeIfExists(partial)

		return res, err
	}
	logger.Trace().Bytes("output", output).Msg("command output")

	written, err := layout.Exists(partial)
	if err != nil {
		return res, &FilesystemError{Op: "stat", Path: partial, Err: err}
	}
	if !written {
		return res, &command.ExecutionError{
			Command:  cmd,
			ExitCode: 0,
			Output:   output,
			Err:      errors.Errorf("%s was not written", partial),
		}
	}

	err = os.Rename(partial, dst)
	if err != nil {
		_ = removeIfExists(partial)

		return res, &FilesystemError{Op: "rename", Path: partial, Err: err}
	}
	res.Outcome = OutcomeRan
	logger.Debug().Dur("duration", res.Duration).Str("destination", dst).Msg("volume written")

	return res, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &FilesystemError{Op: "remove", Path: path, Err: err}
	}

	return nil
}
