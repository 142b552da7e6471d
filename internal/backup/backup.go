// Package backup snapshots the sqlite database into compressed archive
// files with a retention policy.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/storage"
)

const filePrefix = "medstock-"

// DefaultKeep is how many backups are retained when none is configured.
const DefaultKeep = 7

// Info describes one stored backup.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates and prunes database backups.
type Manager struct {
	store   *storage.SQLStore
	logger  *zap.Logger
	metrics *observability.Metrics
	clock   clock.Clock
	dir     string
	keep    int
}

// NewManager creates a backup manager writing into dir and keeping the
// newest keep archives. metrics may be nil.
func NewManager(store *storage.SQLStore, logger *zap.Logger, metrics *observability.Metrics, clk clock.Clock, dir string, keep int) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Manager{store: store, logger: logger, metrics: metrics, clock: clk, dir: dir, keep: keep}
}

// Run takes one backup and prunes old ones. Backups use VACUUM INTO, which
// snapshots a consistent copy without blocking writers.
func (m *Manager) Run(ctx context.Context) (*Info, error) {
	if m.store.Dialect() != storage.DialectSQLite {
		return nil, fmt.Errorf("backups require the sqlite driver, not %s", m.store.Dialect())
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.clock.Now().UTC()
	stamp := now.Format("20060102-150405")
	rawPath := filepath.Join(m.dir, filePrefix+stamp+".db")
	archivePath := rawPath + ".gz"

	// VACUUM INTO takes a literal path; single quotes in it must be doubled.
	quoted := strings.ReplaceAll(rawPath, "'", "''")
	if _, err := m.store.DB().ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}
	defer os.Remove(rawPath)

	size, err := compressFile(rawPath, archivePath)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("failed to compress backup: %w", err)
	}

	if m.metrics != nil {
		m.metrics.LastBackup.Set(float64(now.Unix()))
	}
	m.logger.Info("backup created",
		zap.String("path", archivePath),
		zap.Int64("size", size))

	if err := m.prune(); err != nil {
		m.logger.Warn("failed to prune old backups", zap.Error(err))
	}

	return &Info{
		Name:      filepath.Base(archivePath),
		Path:      archivePath,
		Size:      size,
		CreatedAt: now,
	}, nil
}

// List returns the stored backups, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]Info, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".db.gz") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:      name,
			Path:      filepath.Join(m.dir, name),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name > backups[j].Name })
	return backups, nil
}

func (m *Manager) prune() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for _, b := range backups[min(m.keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return err
		}
		m.logger.Info("pruned old backup", zap.String("path", b.Path))
	}
	return nil
}

func compressFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return 0, err
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}
	if err := out.Sync(); err != nil {
		return 0, err
	}
	fi, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
