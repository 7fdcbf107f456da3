// Package storage persists rendered reports and raw data dumps on the
// local filesystem, grouped by run so repeated invocations never clobber
// each other.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/internal/report"
)

// Store writes report files and lists or prunes what was written before.
type Store interface {
	// SaveReport writes the files of one run under the given format
	// directory and returns the absolute paths written.
	SaveReport(runID, format string, files []report.File) ([]string, error)
	// SaveData writes one raw data dump and returns its absolute path.
	SaveData(runID string, file report.File) (string, error)
	// ListReports returns saved report entries, newest first.
	ListReports() ([]Entry, error)
	// CleanupOldFiles removes run directories older than maxAge and
	// returns how many were removed.
	CleanupOldFiles(maxAge time.Duration) (int, error)
}

// Entry describes one saved report directory.
type Entry struct {
	RunID    string
	Format   string
	Path     string
	ModTime  time.Time
	NumFiles int
}

// LocalStore keeps reports under <root>/reports/<format>/<runID>/ and raw
// dumps under <root>/data/<runID>/.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

// NewLocalStore creates the store rooted at dir, creating it if absent.
func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, eris.New("storage: output directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create output directory %s", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: resolve output directory %s", dir)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

// Root returns the absolute output directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) SaveReport(runID, format string, files []report.File) ([]string, error) {
	dir := filepath.Join(s.root, "reports", format, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create report directory %s", dir)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return nil, eris.Wrapf(err, "storage: write report %s", path)
		}
		s.logger.Debug("report file written",
			zap.String("path", path),
			zap.Int("bytes", len(f.Content)))
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *LocalStore) SaveData(runID string, file report.File) (string, error) {
	dir := filepath.Join(s.root, "data", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "storage: create data directory %s", dir)
	}
	path := filepath.Join(dir, file.Name)
	if err := os.WriteFile(path, file.Content, 0o644); err != nil {
		return "", eris.Wrapf(err, "storage: write data %s", path)
	}
	s.logger.Debug("data file written",
		zap.String("path", path),
		zap.Int("bytes", len(file.Content)))
	return path, nil
}

func (s *LocalStore) ListReports() ([]Entry, error) {
	reportsDir := filepath.Join(s.root, "reports")
	formats, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "storage: read %s", reportsDir)
	}

	var entries []Entry
	for _, fd := range formats {
		if !fd.IsDir() {
			continue
		}
		formatDir := filepath.Join(reportsDir, fd.Name())
		runs, err := os.ReadDir(formatDir)
		if err != nil {
			return nil, eris.Wrapf(err, "storage: read %s", formatDir)
		}
		for _, rd := range runs {
			if !rd.IsDir() {
				continue
			}
			runDir := filepath.Join(formatDir, rd.Name())
			info, err := rd.Info()
			if err != nil {
				return nil, eris.Wrapf(err, "storage: stat %s", runDir)
			}
			files, err := os.ReadDir(runDir)
			if err != nil {
				return nil, eris.Wrapf(err, "storage: read %s", runDir)
			}
			entries = append(entries, Entry{
				RunID:    rd.Name(),
				Format:   fd.Name(),
				Path:     runDir,
				ModTime:  info.ModTime(),
				NumFiles: len(files),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

func (s *LocalStore) CleanupOldFiles(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, sub := range []string{"reports", "data"} {
		base := filepath.Join(s.root, sub)
		dirs, err := collectRunDirs(base)
		if err != nil {
			return removed, err
		}
		for _, dir := range dirs {
			info, err := os.Stat(dir)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return removed, eris.Wrapf(err, "storage: stat %s", dir)
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				return removed, eris.Wrapf(err, "storage: remove %s", dir)
			}
			s.logger.Info("removed expired run directory",
				zap.String("path", dir),
				zap.Time("mod_time", info.ModTime()))
			removed++
		}
	}
	return removed, nil
}

// collectRunDirs lists run directories one or two levels under base:
// data/<runID> and reports/<format>/<runID>.
func collectRunDirs(base string) ([]string, error) {
	top, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "storage: read %s", base)
	}

	var dirs []string
	for _, d := range top {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(base, d.Name())
		if filepath.Base(base) != "reports" {
			dirs = append(dirs, path)
			continue
		}
		runs, err := os.ReadDir(path)
		if err != nil {
			return nil, eris.Wrapf(err, "storage: read %s", path)
		}
		for _, r := range runs {
			if r.IsDir() {
				dirs = append(dirs, filepath.Join(path, r.Name()))
			}
		}
	}
	return dirs, nil
}
