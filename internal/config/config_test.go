package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-fsexport/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsexport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Workers)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Equal(t, "mri_convert", cfg.ToolSet().ConvertProgram)
	assert.Equal(t, "3daxialize", cfg.ToolSet().ReorientProgram)
	assert.Equal(t, "/data/FREESURFER/SUBJECTS/E_S_1/mri", cfg.LayoutFor("/data").InputDir("E", "S", "1"))
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
workers: 4
subjects: ["0023", "0024"]
tools:
  reorient: /opt/afni/3daxialize
  env: ["FREESURFER_HOME=/opt/freesurfer"]
ledger:
  enabled: false
log:
  level: debug
  json: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"0023", "0024"}, cfg.Subjects)
	assert.Equal(t, "mri_convert", cfg.Tools.Convert, "unset keys keep their default")
	assert.Equal(t, "/opt/afni/3daxialize", cfg.Tools.Reorient)
	assert.Equal(t, []string{"FREESURFER_HOME=/opt/freesurfer"}, cfg.Tools.Env)
	assert.False(t, cfg.Ledger.Enabled)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeConfig(t, "wokers: 3\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		"no workers": {
			mutate:  func(cfg *config.Config) { cfg.Workers = 0 },
			wantErr: config.ErrInvalidWorkers,
		},
		"no convert program": {
			mutate:  func(cfg *config.Config) { cfg.Tools.Convert = "" },
			wantErr: config.ErrMissingProgram,
		},
		"no anatomical dir": {
			mutate:  func(cfg *config.Config) { cfg.Layout.AnatomicalDir = "" },
			wantErr: config.ErrMissingDir,
		},
	}
	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.wantErr)
		})
	}

	cfg := config.Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}
