// Package ledger keeps the outcome of export runs in a bbolt file next to the experiment, so the state of every
// session can be reviewed without scanning the output directories.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/askiada/go-fsexport/internal/command"
	"github.com/askiada/go-fsexport/internal/export"
)

// FileName is the name of the ledger in the experiment directory.
const FileName = ".fsexport.db"

const runKeyFormat = "20060102T150405.000000000Z"

// maxOutput is the number of trailing bytes of a failed tool output kept in a session record.
const maxOutput = 4096

// ErrNoLedger is returned by OpenReadOnly when no run was recorded yet.
var ErrNoLedger = errors.New("no ledger")

var (
	runsBucket     = []byte("runs")
	sessionsBucket = []byte("sessions")
)

type StepRecord struct {
	Step    string         `json:"step"`
	Outcome export.Outcome `json:"outcome"`
}

// SessionRecord is the latest outcome of a session.
type SessionRecord struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Session string `json:"session"`
	RunID   string `json:"run_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	// Command and Output describe the failed tool, if any.
	Command    string       `json:"command,omitempty"`
	Output     string       `json:"output,omitempty"`
	Commands   int          `json:"commands"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepRecord `json:"steps"`
}

type RunRecord struct {
	RunID          string    `json:"run_id"`
	Root           string    `json:"root"`
	Experiment     string    `json:"experiment"`
	DryRun         bool      `json:"dry_run"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Sessions       int       `json:"sessions"`
	Failed         int       `json:"failed"`
	FailedSubjects []string  `json:"failed_subjects,omitempty"`
}

type Ledger struct {
	db *bbolt.DB
}

// DefaultPath returns the ledger path of the experiment.
func DefaultPath(root, experiment string) string {
	return filepath.Join(root, experiment, FileName)
}

// Open opens or creates the ledger at path. It fails after timeout when another run holds the ledger.
func Open(path string, timeout time.Duration) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open ledger %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{runsBucket, sessionsBucket} {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return errors.Wrapf(err, "unable to create bucket %s", bucket)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()

		return nil, err
	}

	return &Ledger{db: db}, nil
}

// OpenReadOnly opens an existing ledger for reading. The file is never created.
func OpenReadOnly(path string, timeout time.Duration) (*Ledger, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrNoLedger, path)
	}

	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: timeout, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open ledger %s", path)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores the run and, unless it was a dry run, the outcome of its sessions.
func (l *Ledger) Record(summary *export.Summary) error {
	run := RunRecord{
		RunID:      summary.RunID,
		Root:       summary.Root,
		Experiment: summary.Experiment,
		DryRun:     summary.DryRun,
		Start:      summary.Start,
		End:        summary.End,
		Sessions:   len(summary.Sessions),
		Failed:     summary.Failed(),
	}
	for _, failure := range summary.Subjects {
		run.FailedSubjects = append(run.FailedSubjects, failure.Subject)
	}

	return l.db.Update(func(tx *bbolt.Tx) error {
		err := put(tx.Bucket(runsBucket), []byte(summary.Start.UTC().Format(runKeyFormat)+"-"+summary.RunID), run)
		if err != nil {
			return err
		}
		if summary.DryRun {
			return nil
		}

		sessions := tx.Bucket(sessionsBucket)
		for _, session := range summary.Sessions {
			err := put(sessions, []byte(session.ID), newSessionRecord(summary, session))
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func newSessionRecord(summary *export.Summary, session export.SessionResult) SessionRecord {
	rec := SessionRecord{
		ID:         session.ID,
		Subject:    session.Subject,
		Session:    session.Session,
		RunID:      summary.RunID,
		OK:         !session.Failed(),
		Commands:   session.Commands(),
		FinishedAt: summary.End,
		Steps:      make([]StepRecord, len(session.Steps)),
	}
	if session.Err != nil {
		rec.Error = session.Err.Error()
	}
	var execErr *command.ExecutionError
	if errors.As(session.Err, &execErr) {
		rec.Command = execErr.Command.String()
		rec.Output = tail(execErr.Output, maxOutput)
	}
	for i, step := range session.Steps {
		rec.Steps[i] = StepRecord{Step: step.Step, Outcome: step.Outcome}
	}

	return rec
}

// tail returns the last size bytes of output, tool errors are printed last.
func tail(output []byte, size int) string {
	if len(output) > size {
		output = output[len(output)-size:]
	}

	return strings.TrimSpace(string(output))
}

func put(bucket *bbolt.Bucket, key []byte, value interface{}) error {
	content, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "unable to encode %s", key)
	}

	return errors.Wrapf(bucket.Put(key, content), "unable to store %s", key)
}

// Sessions returns the latest outcome of every session ever exported, ordered by session id.
func (l *Ledger) Sessions() ([]SessionRecord, error) {
	res := []SessionRecord{}
	err := l.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec SessionRecord
			err := json.Unmarshal(v, &rec)
			if err != nil {
				return errors.Wrapf(err, "unable to decode session %s", k)
			}
			res = append(res, rec)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Runs returns the recorded runs, oldest first.
func (l *Ledger) Runs() ([]RunRecord, error) {
	res := []RunRecord{}
	err := l.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(runsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec RunRecord
			err := json.Unmarshal(v, &rec)
			if err != nil {
				return errors.Wrapf(err, "unable to decode run %s", k)
			}
			res = append(res, rec)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
