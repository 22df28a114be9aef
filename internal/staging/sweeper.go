package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultStaleAfter    = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Sweep removes staged files older than ttl, left behind by crashed
// requests. It returns the number removed.
func (s *Store) Sweep(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-ttl)
	removed := 0
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval, ttl time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	go s.sweepLoop(ctx, interval, ttl, logger)
}

func (s *Store) sweepLoop(ctx context.Context, interval, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ttl)
			if err != nil {
				logger.Warn("sweep staged files", "dir", s.dir, "err", err)
			}
			if n > 0 {
				logger.Info("removed stale staged files", "count", n)
			}
		}
	}
}
