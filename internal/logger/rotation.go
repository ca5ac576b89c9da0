package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotationConfig tunes the size-rotated log file writer.
type RotationConfig struct {
	// MaxSizeMB rotates the file once it would exceed this size.
	MaxSizeMB int
	// MaxAgeDays removes rotated files older than this. Zero keeps them.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// RotatingWriter writes the engine log to a single file, rotating it aside
// with a timestamp suffix when it grows past the size cap. Safe for
// concurrent writers; zerolog events arrive from every engine goroutine.
type RotatingWriter struct {
	filename string
	maxSize  int64
	maxAge   int
	compress bool

	mu          sync.Mutex
	currentFile *os.File
	currentSize int64
}

// NewRotatingWriter opens (or creates) the log file at filename.
func NewRotatingWriter(filename string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	rw := &RotatingWriter{
		filename:    filename,
		maxSize:     int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxAge:      cfg.MaxAgeDays,
		compress:    cfg.Compress,
		currentFile: file,
		currentSize: info.Size(),
	}

	rw.cleanup()

	return rw, nil
}

// Write appends to the log file, rotating first if the write would push it
// over the size cap.
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		return w.currentFile.Close()
	}
	return nil
}

// rotate moves the current file aside under a timestamp suffix and opens a
// fresh one. Caller holds w.mu.
func (w *RotatingWriter) rotate() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotatedName := fmt.Sprintf("%s.%s", w.filename, time.Now().Format("20060102-150405"))
	if err := os.Rename(w.filename, rotatedName); err != nil {
		return err
	}

	if w.compress {
		go compressFile(rotatedName)
	}
	go w.cleanup()

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.currentFile = file
	w.currentSize = 0

	return nil
}

// compressFile gzips a rotated file and removes the original.
func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gzw := gzip.NewWriter(dst)
	defer gzw.Close()

	if _, err := io.Copy(gzw, src); err != nil {
		return err
	}

	return os.Remove(filename)
}

// cleanup removes rotated files older than the retention window. The live
// log file never matches the timestamp-suffix glob, so it is never removed.
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(w.filename)
	base := filepath.Base(w.filename)

	rotated, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	for _, path := range rotated {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
			if !strings.HasSuffix(path, ".gz") {
				os.Remove(path + ".gz")
			}
		}
	}
}
