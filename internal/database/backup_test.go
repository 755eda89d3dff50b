package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupFileDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBooking(ctx, newBooking("cust-1", "appliance")))

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	var backupPath string
	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		backupPath = path
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		all, err := restored.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldTime := time.Now().AddDate(0, 0, -2)

		oldFile := filepath.Join(storagePath, "servicebuddy_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
		assert.FileExists(t, backupPath)
	})
}

func TestCleanupKeepsNewestSnapshot(t *testing.T) {
	dir := t.TempDir()
	oldTime := time.Now().AddDate(0, 0, -30)
	only := filepath.Join(dir, "servicebuddy_20200101_000000.000.db")
	require.NoError(t, os.WriteFile(only, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(only, oldTime, oldTime))

	s := NewBackupService(nil, config.BackupConfig{StoragePath: dir, RetentionDays: 1}, nil)
	assert.Zero(t, s.CleanupOldBackups())
	assert.FileExists(t, only)
}

func TestBackupInterval(t *testing.T) {
	s := NewBackupService(nil, config.BackupConfig{Schedule: "6h"}, nil)
	assert.Equal(t, 6*time.Hour, s.interval())

	s = NewBackupService(nil, config.BackupConfig{Schedule: "nightly"}, nil)
	assert.Equal(t, defaultBackupInterval, s.interval())

	s = NewBackupService(nil, config.BackupConfig{}, nil)
	assert.Equal(t, defaultBackupInterval, s.interval())
}

func TestBackupService_InMemory(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	logger := zerolog.Nop()
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: t.TempDir()}, &logger)

	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
