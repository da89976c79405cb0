package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

const ext = ".log"

// lumberjack names backups <name>-<timestamp>.log; those are never rotated again.
var backupName = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3}$`)

type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Log keeps one append-only file per name (check id) under dir.
type Log struct {
	dir  string
	opts Options

	mu    sync.Mutex
	files map[string]*lumberjack.Logger
}

func New(dir string, opts Options) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	return &Log{dir: dir, opts: opts, files: make(map[string]*lumberjack.Logger)}, nil
}

func (l *Log) file(name string) *lumberjack.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.files[name]
	if f == nil {
		f = &lumberjack.Logger{
			Filename:   filepath.Join(l.dir, name+ext),
			MaxSize:    l.opts.MaxSizeMB,
			MaxBackups: l.opts.MaxBackups,
			MaxAge:     l.opts.MaxAgeDays,
			Compress:   l.opts.Compress,
		}
		l.files[name] = f
	}
	return f
}

// Append writes entry as one line to the named log, creating it if needed.
func (l *Log) Append(name string, entry []byte) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid log name %q", name)
	}
	line := make([]byte, 0, len(entry)+1)
	line = append(line, entry...)
	line = append(line, '\n')
	f := l.file(name)
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	// no descriptor is held between writes; the next Write reopens the file
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// Names lists the live (non-backup) logs in the directory.
func (l *Log) Names() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ext) {
			continue
		}
		stem := strings.TrimSuffix(n, ext)
		if backupName.MatchString(stem) {
			continue
		}
		out = append(out, stem)
	}
	sort.Strings(out)
	return out, nil
}

// Rotate moves every non-empty live log aside (compressed when configured)
// and starts a fresh file. It returns how many logs were rotated.
func (l *Log) Rotate() (int, error) {
	names, err := l.Names()
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs error
	)
	for _, name := range names {
		fi, err := os.Stat(filepath.Join(l.dir, name+ext))
		if err != nil || fi.Size() == 0 {
			continue
		}
		f := l.file(name)
		if err := f.Rotate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rotate %s: %w", name, err))
			continue
		}
		// Rotate leaves the fresh file open
		errs = multierr.Append(errs, f.Close())
		n++
	}
	return n, errs
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs error
	for _, f := range l.files {
		errs = multierr.Append(errs, f.Close())
	}
	return errs
}
