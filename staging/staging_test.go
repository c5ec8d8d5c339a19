package staging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rltest "github.com/rosterline/rosterline/internal/testing"
	"github.com/rosterline/rosterline/jobs"
	"github.com/rosterline/rosterline/staging"
)

func TestStage_CopiesWithUniqueName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "roster.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("workbook bytes"), 0o644))

	uploadDir := filepath.Join(dir, "uploads")

	filename, staged, err := staging.Stage(uploadDir, src)
	require.NoError(t, err)
	assert.Equal(t, "roster.xlsx", filename)
	assert.NotEqual(t, "roster.xlsx", staged, "staged name carries a unique suffix")
	assert.Equal(t, ".xlsx", filepath.Ext(staged))

	content, err := os.ReadFile(filepath.Join(uploadDir, staged))
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook bytes"), content)

	// Staging the same source twice never collides.
	_, second, err := staging.Stage(uploadDir, src)
	require.NoError(t, err)
	assert.NotEqual(t, staged, second)
}

func TestStage_MissingSource(t *testing.T) {
	_, _, err := staging.Stage(t.TempDir(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, staging.IsWorkbook("roster.xlsx"))
	assert.True(t, staging.IsWorkbook("ROSTER.XLSM"))
	assert.True(t, staging.IsWorkbook("/data/old.xls"))
	assert.False(t, staging.IsWorkbook("notes.csv"))
	assert.False(t, staging.IsWorkbook("~$roster.xlsx"), "spreadsheet lock files are skipped")
	assert.False(t, staging.IsWorkbook(".hidden.xlsx"))
}

func TestWatcher_EnqueuesDroppedWorkbook(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	queue := jobs.NewQueue(db)
	uploadDir := t.TempDir()

	watcher, err := staging.NewWatcher(uploadDir, queue, zap.NewNop().Sugar())
	require.NoError(t, err)
	watcher.Start()
	t.Cleanup(func() { watcher.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "dropped.xlsx"), []byte("x"), 0o644))

	var claimed *jobs.Job
	require.Eventually(t, func() bool {
		job, err := queue.Dequeue()
		if err != nil || job == nil {
			return false
		}
		claimed = job
		return true
	}, 5*time.Second, 50*time.Millisecond, "dropped workbook never became a job")

	assert.Equal(t, "dropped.xlsx", claimed.Filename)
	assert.Equal(t, "dropped.xlsx", claimed.FilePath)

	// Create+write events for the same file collapse into one job.
	time.Sleep(time.Second)
	extra, err := queue.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, extra)
}

func TestWatcher_IgnoresNonWorkbooks(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	queue := jobs.NewQueue(db)
	uploadDir := t.TempDir()

	watcher, err := staging.NewWatcher(uploadDir, queue, zap.NewNop().Sugar())
	require.NoError(t, err)
	watcher.Start()
	t.Cleanup(func() { watcher.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "~$lock.xlsx"), []byte("x"), 0o644))

	time.Sleep(time.Second)
	job, err := queue.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, job)
}
