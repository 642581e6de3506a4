package export

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

type Outcome string

const (
	// OutcomeRan means the command ran and the destination was written.
	OutcomeRan Outcome = "ran"
	// OutcomeSkipped means the destination already existed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomePlanned means the command would have run, in dry-run mode.
	OutcomePlanned Outcome = "planned"
	OutcomeFailed  Outcome = "failed"
	// OutcomeNotReached means an earlier step of the session failed.
	OutcomeNotReached Outcome = "not-reached"
)

type StepResult struct {
	Step        string
	Destination string
	Outcome     Outcome
	Command     string
	Duration    time.Duration
}

// SessionResult is the outcome of the six steps of a session.
type SessionResult struct {
	Experiment string
	Subject    string
	Session    string
	ID         string
	Steps      []StepResult
	Err        error
	Duration   time.Duration
}

func (r SessionResult) Failed() bool {
	return r.Err != nil
}

// Commands counts the commands run, or planned in dry-run mode.
func (r SessionResult) Commands() int {
	total := 0
	for _, step := range r.Steps {
		if step.Outcome == OutcomeRan || step.Outcome == OutcomePlanned {
			total++
		}
	}

	return total
}

// SubjectFailure records a subject whose sessions could not be listed.
type SubjectFailure struct {
	Subject string
	Err     error
}

// Summary is the report of a run.
type Summary struct {
	RunID      string
	Root       string
	Experiment string
	DryRun     bool
	Start      time.Time
	End        time.Time
	Sessions   []SessionResult
	Subjects   []SubjectFailure
}

func (s *Summary) Succeeded() int {
	total := 0
	for _, session := range s.Sessions {
		if !session.Failed() {
			total++
		}
	}

	return total
}

func (s *Summary) Failed() int {
	return len(s.Sessions) - s.Succeeded()
}

// OK reports whether every subject was listed and every session exported.
func (s *Summary) OK() bool {
	return len(s.Subjects) == 0 && s.Failed() == 0
}

// Commands counts the commands run, or planned in dry-run mode, over all sessions.
func (s *Summary) Commands() int {
	total := 0
	for _, session := range s.Sessions {
		total += session.Commands()
	}

	return total
}

func (s *Summary) sort() {
	sort.Slice(s.Sessions, func(i, j int) bool {
		if s.Sessions[i].Subject != s.Sessions[j].Subject {
			return s.Sessions[i].Subject < s.Sessions[j].Subject
		}

		return s.Sessions[i].Session < s.Sessions[j].Session
	})
	sort.Slice(s.Subjects, func(i, j int) bool {
		return s.Subjects[i].Subject < s.Subjects[j].Subject
	})
}

// Log writes one line per session and subject failure, then the totals.
func (s *Summary) Log(logger zerolog.Logger) {
	for _, failure := range s.Subjects {
		logger.Error().Str("subject", failure.Subject).Err(failure.Err).Msg("subject failed")
	}
	for _, session := range s.Sessions {
		evt, msg := logger.Info(), "session exported"
		if session.Failed() {
			evt, msg = logger.Error().Err(session.Err), "session failed"
		}
		evt.Str("subject", session.Subject).
			Str("session", session.Session).
			Int("commands", session.Commands()).
			Dur("duration", session.Duration).
			Msg(msg)
	}

	logger.Info().
		Str("run", s.RunID).
		Bool("dry_run", s.DryRun).
		Int("sessions", len(s.Sessions)).
		Int("succeeded", s.Succeeded()).
		Int("failed", s.Failed()).
		Int("failed_subjects", len(s.Subjects)).
		Int("commands", s.Commands()).
		Dur("duration", s.End.Sub(s.Start)).
		Msg("export finished")
}
