package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-fsexport/internal/export"
	"github.com/askiada/go-fsexport/internal/ledger"
)

// fakeTool writes the volume passed to --output_volume or -prefix, like mri_convert and 3daxialize do.
const fakeTool = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output_volume|-prefix) out="$2"; shift ;;
  esac
  shift
done
echo "$0" > "$out"
`

func setupExperiment(t *testing.T, sessions ...string) (root, configFile string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	root = t.TempDir()
	for _, session := range sessions {
		mri := filepath.Join(root, "FREESURFER", "SUBJECTS", "STUDY1_0023_"+session, "mri")
		require.NoError(t, os.MkdirAll(mri, 0o755))
		for _, volume := range []string{"brain.mgz", "aparc+aseg.mgz", "aparc.a2009s+aseg.mgz"} {
			require.NoError(t, os.WriteFile(filepath.Join(mri, volume), []byte("mgz"), 0o644))
		}
		require.NoError(t, os.MkdirAll(filepath.Join(root, "STUDY1", "0023", "T1", session), 0o755))
	}

	bin := t.TempDir()
	tool := filepath.Join(bin, "fake-tool")
	require.NoError(t, os.WriteFile(tool, []byte(fakeTool), 0o755))

	configFile = filepath.Join(bin, "fsexport.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("tools:\n  convert: "+tool+"\n  reorient: "+tool+"\nlog:\n  level: warn\n"), 0o644))

	return root, configFile
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	root, configFile := setupExperiment(t, "ses01", "ses02")
	graph := filepath.Join(t.TempDir(), "run.dot")

	_, err := execute(t, root, "STUDY1", "--config", configFile, "--workers", "2", "--graph", graph)
	require.NoError(t, err)

	for _, session := range []string{"ses01", "ses02"} {
		for _, step := range export.Catalog() {
			assert.FileExists(t, filepath.Join(root, "STUDY1", "0023", "T1", session, step.Destination))
		}
	}
	assert.FileExists(t, ledger.DefaultPath(root, "STUDY1"))

	content, err := os.ReadFile(graph)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"sessions" -> "export"`)

	out, err := execute(t, "status", root, "STUDY1", "--config", configFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "ses01")
	assert.Contains(t, lines[1], "ok")

	out, err = execute(t, "status", root, "STUDY1", "--config", configFile, "--failed")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestExportCommandFailure(t *testing.T) {
	root, configFile := setupExperiment(t, "ses01")
	require.NoError(t, os.Remove(filepath.Join(root, "FREESURFER", "SUBJECTS", "STUDY1_0023_ses01", "mri", "brain.mgz")))

	_, err := execute(t, root, "STUDY1", "--config", configFile, "--no-ledger")
	assert.ErrorIs(t, err, errExportFailed)
	assert.NoFileExists(t, ledger.DefaultPath(root, "STUDY1"))
}

func TestExportCommandDryRun(t *testing.T) {
	root, configFile := setupExperiment(t, "ses01")

	_, err := execute(t, root, "STUDY1", "--config", configFile, "--dry-run")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "STUDY1", "0023", "T1", "ses01"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportCommandArgs(t *testing.T) {
	_, err := execute(t, "/data")
	assert.Error(t, err)

	_, err = execute(t, "/data", "STUDY1", "--workers", "0")
	assert.Error(t, err)
}

func TestStatusCommandWithoutLedger(t *testing.T) {
	root, configFile := setupExperiment(t, "ses01")

	out, err := execute(t, "status", root, "STUDY1", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "no ledger at "+ledger.DefaultPath(root, "STUDY1"))
	assert.NoFileExists(t, ledger.DefaultPath(root, "STUDY1"))
}

func TestStatusCommandToolOutput(t *testing.T) {
	root, configFile := setupExperiment(t, "ses01")
	failing := filepath.Join(filepath.Dir(configFile), "failing-tool")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho 'ERROR: corrupt volume' >&2\nexit 3\n"), 0o755))
	require.NoError(t, os.WriteFile(configFile, []byte("tools:\n  convert: "+failing+"\nlog:\n  level: error\n"), 0o644))

	_, err := execute(t, root, "STUDY1", "--config", configFile)
	require.ErrorIs(t, err, errExportFailed)

	out, err := execute(t, "status", root, "STUDY1", "--config", configFile, "--failed", "--output")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "failing-tool exited with status 3")
	assert.Contains(t, out, "0023/ses01\n$ "+failing+" --in_type mgz")
	assert.Contains(t, out, "ERROR: corrupt volume")
}

func TestStepsCommandConfiguredTools(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "fsexport.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("tools:\n  convert: /opt/fs/bin/mri_convert\n"), 0o644))

	out, err := execute(t, "steps", "--config", configFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[1], "/opt/fs/bin/mri_convert --in_type mgz")
	assert.Contains(t, lines[2], "3daxialize -prefix")
}

func TestStepsCommand(t *testing.T) {
	out, err := execute(t, "steps")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[1], "t1-convert")
	assert.Contains(t, lines[1], "mri_convert --in_type mgz --out_type nii -odt float -rt nearest --input_volume '<mri>/brain.mgz'")
	assert.Contains(t, lines[6], "3daxialize -prefix '<session>/anat_aparc2009_brain.nii.gz' -axial '<session>/anat_aparc2009_fs.nii.gz'")
}
