package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	backupPrefix          = "servicebuddy_"
	backupSuffix          = ".db"
	defaultBackupInterval = 24 * time.Hour
)

// BackupService snapshots the SQLite file on a fixed interval and prunes
// snapshots older than the retention window. The newest snapshot is
// always kept.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	s := &BackupService{
		db:     db,
		config: cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "backup").Logger()
	}
	return s
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return defaultBackupInterval
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("invalid backup schedule, using 24h")
		return defaultBackupInterval
	}
	return d
}

// Start takes a snapshot immediately and then once per interval until ctx
// is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backups disabled")
		return
	}

	every := s.interval()
	s.logger.Info().Dur("interval", every).Str("dir", s.config.StoragePath).Msg("backup service started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("backup failed")
		}
		return
	}
	if removed := s.CleanupOldBackups(); removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("old backups pruned")
	}
}

// PerformBackup writes a consistent snapshot of the live database with
// VACUUM INTO and returns the snapshot path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if s.db == nil || s.db.Path() == ":memory:" {
		metrics.IncBackup("skipped")
		return "", errors.New("in-memory database cannot be backed up")
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		metrics.IncBackup("failed")
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := backupPrefix + s.now().UTC().Format("20060102_150405.000") + backupSuffix
	target := filepath.Join(s.config.StoragePath, name)

	escaped := strings.ReplaceAll(target, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		metrics.IncBackup("failed")
		return "", fmt.Errorf("vacuum into %s: %w", target, err)
	}

	metrics.IncBackup("ok")
	s.logger.Info().Str("path", target).Msg("database snapshot written")
	return target, nil
}

// CleanupOldBackups removes snapshots past RetentionDays and returns how
// many were deleted. Files not written by PerformBackup are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory")
		return 0
	}

	type snapshot struct {
		name    string
		modTime time.Time
	}
	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: e.Name(), modTime: info.ModTime()})
	}
	if len(snaps) < 2 {
		return 0
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].modTime.After(snaps[j].modTime) })

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, snap := range snaps[1:] {
		if !snap.modTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, snap.name)); err != nil {
			s.logger.Warn().Err(err).Str("file", snap.name).Msg("delete old backup")
			continue
		}
		removed++
	}
	return removed
}
