package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fileflow/ingestd/internal/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&database.FileRecord{}, &database.ProcessLog{}))
	return db
}

func testRecord(hash string) *database.FileRecord {
	return &database.FileRecord{
		FileName:    "report.csv",
		SourcePath:  "/data/incoming/report.csv",
		FileType:    database.FileTypeCSV,
		FileSize:    1024,
		ContentHash: hash,
		Status:      database.StatusValidated,
		Metadata:    `{"row_count":10}`,
	}
}

func TestInsertMetadata(t *testing.T) {
	gw := New(setupTestDB(t))

	t.Run("assigns file ID and timestamp", func(t *testing.T) {
		record := testRecord(strings.Repeat("a", 64))
		fileID, err := gw.InsertMetadata(record)
		require.NoError(t, err)
		assert.NotEmpty(t, fileID)
		assert.Equal(t, fileID, record.FileID)
		assert.False(t, record.IngestedAt.IsZero())
	})

	t.Run("duplicate hash is rejected", func(t *testing.T) {
		hash := strings.Repeat("b", 64)
		_, err := gw.InsertMetadata(testRecord(hash))
		require.NoError(t, err)

		_, err = gw.InsertMetadata(testRecord(hash))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateHash)
	})

	t.Run("failed holder of a hash is evicted on reinsert", func(t *testing.T) {
		hash := strings.Repeat("c", 64)
		first := testRecord(hash)
		fileID, err := gw.InsertMetadata(first)
		require.NoError(t, err)

		require.NoError(t, gw.UpdateMetadata(fileID, map[string]interface{}{
			"status": database.StatusFailed,
		}))

		second := testRecord(hash)
		newID, err := gw.InsertMetadata(second)
		require.NoError(t, err)
		assert.NotEqual(t, fileID, newID)

		_, err = gw.GetMetadata(fileID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFindByHash(t *testing.T) {
	gw := New(setupTestDB(t))

	t.Run("missing hash returns ErrNotFound", func(t *testing.T) {
		_, err := gw.FindByHash(strings.Repeat("0", 64))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("validated record is found", func(t *testing.T) {
		hash := strings.Repeat("d", 64)
		fileID, err := gw.InsertMetadata(testRecord(hash))
		require.NoError(t, err)

		found, err := gw.FindByHash(hash)
		require.NoError(t, err)
		assert.Equal(t, fileID, found.FileID)
		assert.Equal(t, database.StatusValidated, found.Status)
	})

	t.Run("demoted record no longer matches", func(t *testing.T) {
		hash := strings.Repeat("e", 64)
		fileID, err := gw.InsertMetadata(testRecord(hash))
		require.NoError(t, err)

		require.NoError(t, gw.UpdateMetadata(fileID, map[string]interface{}{
			"status": database.StatusFailed,
		}))

		_, err = gw.FindByHash(hash)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateMetadata(t *testing.T) {
	gw := New(setupTestDB(t))

	t.Run("unknown file ID returns ErrNotFound", func(t *testing.T) {
		err := gw.UpdateMetadata("no-such-id", map[string]interface{}{
			"status": database.StatusFailed,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("updates are visible on read back", func(t *testing.T) {
		fileID, err := gw.InsertMetadata(testRecord(strings.Repeat("f", 64)))
		require.NoError(t, err)

		require.NoError(t, gw.UpdateMetadata(fileID, map[string]interface{}{
			"status": database.StatusFailed,
		}))

		record, err := gw.GetMetadata(fileID)
		require.NoError(t, err)
		assert.Equal(t, database.StatusFailed, record.Status)
	})
}

func TestInsertProcessLog(t *testing.T) {
	db := setupTestDB(t)
	gw := New(db)

	entry := &database.ProcessLog{
		FileName:  "report.csv",
		FileType:  database.FileTypeCSV,
		Status:    database.LogStatusSuccess,
		Message:   "ingested",
		Batch:     "20260830_1200",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, gw.InsertProcessLog(entry))

	var count int64
	require.NoError(t, db.Model(&database.ProcessLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListFiles(t *testing.T) {
	gw := New(setupTestDB(t))

	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("%064d", i))
		if i == 2 {
			record.FileType = database.FileTypeImage
		}
		_, err := gw.InsertMetadata(record)
		require.NoError(t, err)
	}

	t.Run("unfiltered listing pages through everything", func(t *testing.T) {
		records, total, err := gw.ListFiles(1, 2, "", "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, records, 2)
	})

	t.Run("file type filter narrows the listing", func(t *testing.T) {
		records, total, err := gw.ListFiles(1, 10, string(database.FileTypeImage), "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, database.FileTypeImage, records[0].FileType)
	})
}

func TestListProcessLogs(t *testing.T) {
	gw := New(setupTestDB(t))

	for i, status := range []string{
		database.LogStatusSuccess,
		database.LogStatusSuccess,
		database.LogStatusValidationFailed,
	} {
		batch := "20260830_1200"
		if i == 2 {
			batch = "20260830_1300"
		}
		require.NoError(t, gw.InsertProcessLog(&database.ProcessLog{
			FileName:  fmt.Sprintf("file_%d.csv", i),
			FileType:  database.FileTypeCSV,
			Status:    status,
			Batch:     batch,
			CreatedAt: time.Now().UTC(),
		}))
	}

	t.Run("status filter", func(t *testing.T) {
		entries, total, err := gw.ListProcessLogs(1, 10, database.LogStatusSuccess, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, entries, 2)
	})

	t.Run("batch filter", func(t *testing.T) {
		entries, total, err := gw.ListProcessLogs(1, 10, "", "20260830_1300")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, database.LogStatusValidationFailed, entries[0].Status)
	})
}

func TestStats(t *testing.T) {
	gw := New(setupTestDB(t))

	for _, status := range []string{
		database.LogStatusSuccess,
		database.LogStatusSuccess,
		database.LogStatusDuplicate,
	} {
		require.NoError(t, gw.InsertProcessLog(&database.ProcessLog{
			FileName:  "x.csv",
			FileType:  database.FileTypeCSV,
			Status:    status,
			Batch:     "20260830_1200",
			CreatedAt: time.Now().UTC(),
		}))
	}

	stats, err := gw.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[database.LogStatusSuccess])
	assert.Equal(t, int64(1), stats[database.LogStatusDuplicate])
}

func TestHealthCheck(t *testing.T) {
	db := setupTestDB(t)
	gw := New(db)
	require.NoError(t, gw.HealthCheck())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = gw.HealthCheck()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
