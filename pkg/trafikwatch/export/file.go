package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// RotatingFile
// ─────────────────────────────────────────────────────────────────────────────

// RotateConfig controls output file rotation.
type RotateConfig struct {
	// FilePath is the active file name (required).
	FilePath string

	// MaxBytes triggers rotation when the active file exceeds this size.
	// Zero disables rotation.
	MaxBytes int64

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser with size-based rotation. When the
// active file exceeds MaxBytes it is renamed with a numeric suffix
// (traffic.jsonl → traffic.jsonl.1) and a fresh file is opened. Safe for
// concurrent use.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	file   *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile opens (or creates) the file at cfg.FilePath. The caller
// must Close it.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("export: FilePath is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: mkdir %s: %w", dir, err)
	}

	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.openFile(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write rotates the file when MaxBytes would be exceeded, then appends p.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.cfg.MaxBytes > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			// Keep writing to the current file rather than losing records.
			rf.logger.Error("export: rotate failed", "error", err.Error())
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the active file.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file != nil {
		return rf.file.Close()
	}
	return nil
}

func (rf *RotatingFile) openFile() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("export: open %s: %w", rf.cfg.FilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("export: stat %s: %w", rf.cfg.FilePath, err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

// rotate shifts traffic.jsonl.N → traffic.jsonl.N+1, renames the active file
// to .1, and opens a fresh one.
func (rf *RotatingFile) rotate() error {
	// The active file must always be reopened, whatever happens to the
	// backup shuffle, or the next Write lands on a closed handle.
	if rf.file != nil {
		if err := rf.file.Close(); err != nil {
			rf.logger.Warn("export: rotate: close error", "error", err.Error())
		}
		rf.file = nil
	}

	maxKeep := rf.cfg.MaxBackups
	if maxKeep <= 0 {
		maxKeep = 1 << 20
	}
	for i := maxKeep - 1; i >= 1; i-- {
		older := fmt.Sprintf("%s.%d", rf.cfg.FilePath, i)
		newer := fmt.Sprintf("%s.%d", rf.cfg.FilePath, i+1)
		if _, err := os.Stat(older); err == nil {
			_ = os.Rename(older, newer)
		}
	}
	if rf.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", rf.cfg.FilePath, rf.cfg.MaxBackups+1))
	}
	if err := os.Rename(rf.cfg.FilePath, rf.cfg.FilePath+".1"); err != nil && !os.IsNotExist(err) {
		rf.logger.Warn("export: rotate: rename error", "error", err.Error())
	}

	rf.logger.Debug("export: rotated output file", "path", rf.cfg.FilePath)
	return rf.openFile()
}
