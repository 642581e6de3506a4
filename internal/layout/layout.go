// Package layout resolves the directories read and written by the exporter and discovers the subjects and
// sessions of an experiment.
//
// Inputs live in the FreeSurfer subjects directory:
//
//	<root>/FREESURFER/SUBJECTS/<experiment>_<subject>_<session>/mri
//
// Outputs live in the session directory of the experiment:
//
//	<root>/<experiment>/<subject>/T1/<session>
package layout

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultSubjectsDir is the FreeSurfer subjects directory, relative to the root path.
	DefaultSubjectsDir = "FREESURFER/SUBJECTS"
	// DefaultAnatomicalDir is the directory holding the sessions of a subject.
	DefaultAnatomicalDir = "T1"

	mriDir = "mri"
)

// Layout resolves paths below Root.
type Layout struct {
	Root          string
	SubjectsDir   string
	AnatomicalDir string
}

// New returns the layout used by FreeSurfer exports below root.
func New(root string) Layout {
	return Layout{
		Root:          root,
		SubjectsDir:   DefaultSubjectsDir,
		AnatomicalDir: DefaultAnatomicalDir,
	}
}

// SubjectID is the canonical identifier of a subject session, also the name of its FreeSurfer subject directory.
func SubjectID(experiment, subject, session string) string {
	return experiment + "_" + subject + "_" + session
}

// ExperimentDir is the directory listing the subjects of the experiment.
func (l Layout) ExperimentDir(experiment string) string {
	return filepath.Join(l.Root, experiment)
}

// SessionsDir is the directory listing the sessions of the subject.
func (l Layout) SessionsDir(experiment, subject string) string {
	return filepath.Join(l.Root, experiment, subject, l.AnatomicalDir)
}

// InputDir is the FreeSurfer mri directory of the session.
func (l Layout) InputDir(experiment, subject, session string) string {
	return filepath.Join(l.Root, filepath.FromSlash(l.SubjectsDir), SubjectID(experiment, subject, session), mriDir)
}

// OutputDir is the directory receiving the exported volumes of the session.
func (l Layout) OutputDir(experiment, subject, session string) string {
	return filepath.Join(l.SessionsDir(experiment, subject), session)
}

// Subjects lists the subjects of the experiment: every directory below the experiment directory,
// except hidden ones, in lexicographic order.
func (l Layout) Subjects(experiment string) ([]string, error) {
	return listDirs(l.ExperimentDir(experiment))
}

// Sessions lists the sessions of the subject in lexicographic order. Regular files next to the session
// directories are ignored.
func (l Layout) Sessions(experiment, subject string) ([]string, error) {
	return listDirs(l.SessionsDir(experiment, subject))
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", dir)
	}

	res := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		isDir, err := isDirEntry(dir, entry)
		if err != nil {
			return nil, err
		}
		if isDir {
			res = append(res, entry.Name())
		}
	}
	sort.Strings(res)

	return res, nil
}

// isDirEntry follows symbolic links, studies often link sessions from other storage.
func isDirEntry(dir string, entry os.DirEntry) (bool, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "unable to stat %s", filepath.Join(dir, entry.Name()))
	}

	return info.IsDir(), nil
}

// Exists reports whether path is an existing regular file.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "unable to stat %s", path)
	}

	return info.Mode().IsRegular(), nil
}
