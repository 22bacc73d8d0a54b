package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxBytes = 10 << 20
	defaultKeep     = 5
)

// ErrClosed is returned by Export after Close.
var ErrClosed = errors.New("trace exporter closed")

// Options tunes a FileExporter. Zero values select the defaults.
type Options struct {
	// MaxBytes is the size at which the live file is rotated (default 10MiB).
	MaxBytes int64
	// Keep is how many rotated files survive as path.1 .. path.N (default 5).
	Keep int
}

// FileExporter appends one JSON line per record to a file and rotates it
// once it grows past MaxBytes.
type FileExporter struct {
	path string
	opts Options

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// NewFileExporter opens path for appending, creating parent directories.
// An empty path disables tracing and returns a NoopExporter.
func NewFileExporter(path string, opts Options) (Exporter, error) {
	if path == "" {
		return NoopExporter{}, nil
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Keep <= 0 {
		opts.Keep = defaultKeep
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	fe := &FileExporter{path: path, opts: opts}
	if err := fe.open(); err != nil {
		return nil, err
	}
	return fe, nil
}

func (fe *FileExporter) open() error {
	f, err := os.OpenFile(fe.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat trace file: %w", err)
	}
	fe.file = f
	fe.size = info.Size()
	return nil
}

// Export appends record. The line is written with a single write call so
// concurrent readers never see half a record.
func (fe *FileExporter) Export(_ context.Context, record *TraceRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode trace record: %w", err)
	}
	line = append(line, '\n')

	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.closed {
		return ErrClosed
	}

	n, err := fe.file.Write(line)
	fe.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	if fe.size >= fe.opts.MaxBytes {
		return fe.rotate()
	}
	return nil
}

// rotate shifts path.N-1 to path.N down to path to path.1, dropping the
// oldest, and reopens an empty live file. Caller holds mu.
func (fe *FileExporter) rotate() error {
	if err := fe.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	for i := fe.opts.Keep; i >= 1; i-- {
		from := fe.path
		if i > 1 {
			from = rotatedName(fe.path, i-1)
		}
		err := os.Rename(from, rotatedName(fe.path, i))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to rotate trace file: %w", err)
		}
	}
	return fe.open()
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Close syncs and closes the file. Calling it twice is harmless.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.closed {
		return nil
	}
	fe.closed = true
	return errors.Join(fe.file.Sync(), fe.file.Close())
}

// ReadFile returns the last limit records of the live trace file at path,
// oldest first. A limit <= 0 returns every record. Lines that do not decode
// are skipped. A missing file yields no records.
func ReadFile(path string, limit int) ([]TraceRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	var records []TraceRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec TraceRecord
		if json.Unmarshal(scanner.Bytes(), &rec) != nil {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) > limit {
			records = records[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return records, nil
}
