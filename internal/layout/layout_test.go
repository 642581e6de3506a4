package layout_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-fsexport/internal/layout"
)

func TestPaths(t *testing.T) {
	t.Parallel()

	lay := layout.New("/data")

	assert.Equal(t, "STUDY1_0023_ses01", layout.SubjectID("STUDY1", "0023", "ses01"))
	assert.Equal(t, "/data/FREESURFER/SUBJECTS/STUDY1_0023_ses01/mri", lay.InputDir("STUDY1", "0023", "ses01"))
	assert.Equal(t, "/data/STUDY1/0023/T1/ses01", lay.OutputDir("STUDY1", "0023", "ses01"))
	assert.Equal(t, "/data/STUDY1/0023/T1", lay.SessionsDir("STUDY1", "0023"))
	assert.Equal(t, "/data/STUDY1", lay.ExperimentDir("STUDY1"))
}

func TestPathsCustomDirs(t *testing.T) {
	t.Parallel()

	lay := layout.Layout{Root: "/data", SubjectsDir: "fs/subjects", AnatomicalDir: "anat"}

	assert.Equal(t, "/data/fs/subjects/E_S_1/mri", lay.InputDir("E", "S", "1"))
	assert.Equal(t, "/data/E/S/anat/1", lay.OutputDir("E", "S", "1"))
}

func mkdirs(t *testing.T, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lay := layout.New(root)
	t1 := lay.SessionsDir("STUDY1", "0023")
	mkdirs(t, filepath.Join(t1, "ses02"), filepath.Join(t1, "ses01"), filepath.Join(t1, ".snapshot"))
	require.NoError(t, os.WriteFile(filepath.Join(t1, "notes.txt"), []byte("not a session"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(t1, "ses01"), filepath.Join(t1, "ses03")))
	require.NoError(t, os.Symlink(filepath.Join(t1, "gone"), filepath.Join(t1, "broken")))

	sessions, err := lay.Sessions("STUDY1", "0023")
	require.NoError(t, err)
	assert.Equal(t, []string{"ses01", "ses02", "ses03"}, sessions)
}

func TestSessionsMissingDir(t *testing.T) {
	t.Parallel()

	lay := layout.New(t.TempDir())
	_, err := lay.Sessions("STUDY1", "0023")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSubjects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lay := layout.New(root)
	exp := lay.ExperimentDir("STUDY1")
	mkdirs(t, filepath.Join(exp, "0024"), filepath.Join(exp, "0023"), filepath.Join(exp, ".git"))
	require.NoError(t, os.WriteFile(filepath.Join(exp, "README"), nil, 0o644))

	subjects, err := lay.Subjects("STUDY1")
	require.NoError(t, err)
	assert.Equal(t, []string{"0023", "0024"}, subjects)
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "anat_T1_fs.nii.gz")
	require.NoError(t, os.WriteFile(file, []byte("nii"), 0o644))

	ok, err := layout.Exists(file)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = layout.Exists(filepath.Join(dir, "missing.nii.gz"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = layout.Exists(dir)
	require.NoError(t, err)
	assert.False(t, ok, "directories are not volumes")
}
