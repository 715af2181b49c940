package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel401/bugviper/internal/models"
)

func TestJobRowToModel(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)

	stats, err := json.Marshal(&models.IngestionStats{
		FilesProcessed: 12,
		ClassesFound:   3,
		Errors:         []string{"parse error in a.py"},
	})
	require.NoError(t, err)

	row := jobRow{
		JobID:         "ingest-abc123",
		Owner:         "octo",
		RepoName:      "lib",
		Branch:        "main",
		ClearExisting: true,
		Status:        "RUNNING",
		CreatedAt:     created,
		UpdatedAt:     started,
		StartedAt:     &started,
		Stats:         stats,
	}

	job, err := row.toModel()
	require.NoError(t, err)

	assert.Equal(t, "octo/lib", job.Repo())
	assert.Equal(t, models.JobRunning, job.Status)
	assert.True(t, job.ClearExisting)
	require.NotNil(t, job.Stats)
	assert.Equal(t, 12, job.Stats.FilesProcessed)
	assert.Equal(t, []string{"parse error in a.py"}, job.Stats.Errors)
}

func TestJobRowToModelWithoutStats(t *testing.T) {
	row := jobRow{JobID: "x", Owner: "o", RepoName: "r", Status: "PENDING"}
	job, err := row.toModel()
	require.NoError(t, err)
	assert.Nil(t, job.Stats)
}

func TestJobRowToModelRejectsBadStats(t *testing.T) {
	row := jobRow{JobID: "x", Status: "FAILED", Stats: []byte("{broken")}
	_, err := row.toModel()
	assert.Error(t, err)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, models.JobCompleted.Terminal())
	assert.True(t, models.JobFailed.Terminal())
	assert.False(t, models.JobPending.Terminal())
	assert.False(t, models.JobDispatched.Terminal())
	assert.False(t, models.JobRunning.Terminal())
}
