package export_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-fsexport/internal/export"
)

func TestSummaryCounts(t *testing.T) {
	summary := &export.Summary{
		Sessions: []export.SessionResult{
			{Subject: "0023", Session: "ses01", Steps: []export.StepResult{
				{Outcome: export.OutcomeRan}, {Outcome: export.OutcomeSkipped}, {Outcome: export.OutcomeRan},
			}},
			{Subject: "0023", Session: "ses02", Err: errors.New("boom"), Steps: []export.StepResult{
				{Outcome: export.OutcomeRan}, {Outcome: export.OutcomeFailed}, {Outcome: export.OutcomeNotReached},
			}},
			{Subject: "0024", Session: "ses01", Steps: []export.StepResult{
				{Outcome: export.OutcomePlanned},
			}},
		},
	}

	assert.Equal(t, 2, summary.Succeeded())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, 4, summary.Commands())
	assert.False(t, summary.OK())

	summary.Sessions = summary.Sessions[:1]
	assert.True(t, summary.OK())

	summary.Subjects = []export.SubjectFailure{{Subject: "0025", Err: errors.New("unreadable")}}
	assert.False(t, summary.OK())
}

func TestSummaryLog(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	summary := &export.Summary{
		RunID: "run-1",
		Start: start,
		End:   start.Add(2 * time.Second),
		Sessions: []export.SessionResult{
			{Subject: "0023", Session: "ses01"},
			{Subject: "0023", Session: "ses02", Err: errors.New("boom")},
		},
		Subjects: []export.SubjectFailure{{Subject: "0024", Err: errors.New("unreadable")}},
	}

	out := &bytes.Buffer{}
	summary.Log(zerolog.New(out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	entries := make([]map[string]interface{}, len(lines))
	for i, line := range lines {
		require.NoError(t, json.Unmarshal([]byte(line), &entries[i]))
	}

	assert.Equal(t, "subject failed", entries[0]["message"])
	assert.Equal(t, "0024", entries[0]["subject"])
	assert.Equal(t, "session exported", entries[1]["message"])
	assert.Equal(t, "session failed", entries[2]["message"])
	assert.Equal(t, "boom", entries[2]["error"])
	assert.Equal(t, "export finished", entries[3]["message"])
	assert.EqualValues(t, 1, entries[3]["succeeded"])
	assert.EqualValues(t, 1, entries[3]["failed"])
	assert.EqualValues(t, 1, entries[3]["failed_subjects"])
}
