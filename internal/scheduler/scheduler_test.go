package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/database"
	"github.com/fileflow/ingestd/internal/extractor"
	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/organizer"
	"github.com/fileflow/ingestd/internal/pipeline"
)

func setupScheduler(t *testing.T) (*Scheduler, config.FolderConfig, *gorm.DB) {
	root := t.TempDir()
	folders := config.FolderConfig{
		Incoming:  filepath.Join(root, "incoming"),
		Raw:       filepath.Join(root, "raw"),
		Validated: filepath.Join(root, "validated"),
		Failed:    filepath.Join(root, "failed"),
	}
	for _, dir := range folders.All() {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.FileRecord{}, &database.ProcessLog{}))

	gw := gateway.New(db)
	registry := extractor.NewRegistry(config.FileTypeConfig{
		CSVExtensions:   []string{".csv"},
		ImageExtensions: []string{".jpg"},
		VideoExtensions: []string{".mp4"},
	})
	pipe := pipeline.New(registry, gw, organizer.New(folders))

	cfg := config.SchedulerConfig{IntervalMinutes: 30, Workers: 2}
	return New(cfg, folders, pipe, gw), folders, db
}

func TestRunCycleEmptyIncoming(t *testing.T) {
	sched, _, _ := setupScheduler(t)

	stats := sched.RunCycle(context.Background())
	assert.Equal(t, 0, stats.Found)
	assert.Equal(t, 0, stats.Succeeded)
	assert.NotEmpty(t, stats.Batch)
}

func TestRunCycleProcessesIncoming(t *testing.T) {
	sched, folders, _ := setupScheduler(t)

	require.NoError(t, os.WriteFile(filepath.Join(folders.Incoming, "a.csv"), []byte("id\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folders.Incoming, "b.csv"), []byte("id\n2\n"), 0o644))
	// Identical content to a.csv, rejected as a duplicate.
	require.NoError(t, os.WriteFile(filepath.Join(folders.Incoming, "c.csv"), []byte("id\n1\n"), 0o644))
	// Invalid image.
	require.NoError(t, os.WriteFile(filepath.Join(folders.Incoming, "empty.jpg"), nil, 0o644))

	stats := sched.RunCycle(context.Background())

	assert.Equal(t, 4, stats.Found)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Failed)

	t.Run("incoming is drained", func(t *testing.T) {
		entries, err := os.ReadDir(folders.Incoming)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("stats survive for the ops API", func(t *testing.T) {
		// RunCycle alone does not store stats; Run does via tryCycle.
		assert.Equal(t, CycleStats{}, sched.LastCycle())
	})
}

func TestRunCycleGatewayDown(t *testing.T) {
	sched, folders, db := setupScheduler(t)

	src := filepath.Join(folders.Incoming, "a.csv")
	require.NoError(t, os.WriteFile(src, []byte("id\n1\n"), 0o644))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	stats := sched.RunCycle(context.Background())

	// The cycle ends before discovery; incoming is untouched.
	assert.Equal(t, 0, stats.Found)
	assert.FileExists(t, src)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))

	files, err := listFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Sorted, regular files only.
	assert.Equal(t, filepath.Join(dir, "a.csv"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.csv"), files[1])
}

func TestListFilesMissingDir(t *testing.T) {
	files, err := listFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
