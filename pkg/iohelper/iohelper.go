// Package iohelper provides bounded file reads and atomic file writes.
package iohelper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Size limits for files read fully into memory.
const (
	// SmallMaxFileSize is for configuration files (1MB).
	SmallMaxFileSize int64 = 1024 * 1024

	// DefaultMaxFileSize is for rule and exclusion packs (16MB).
	DefaultMaxFileSize int64 = 16 * 1024 * 1024
)

// ErrTooLarge is returned when a file exceeds the read limit.
var ErrTooLarge = errors.New("iohelper: file too large")

// ReadFile reads the file at path, failing with ErrTooLarge rather than
// truncating when it holds more than maxSize bytes.
//
// Usage:
//
//	data, err := iohelper.ReadFile(path, iohelper.SmallMaxFileSize)
func ReadFile(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f, maxSize)
}

// ReadAll reads r to the end, failing with ErrTooLarge when it holds more
// than maxSize bytes. A nil reader yields an empty slice.
func ReadAll(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSize)
	}
	return data, nil
}

// WriteFileAtomic writes path through fn. The content goes to a temporary
// file in the same directory which is renamed over path only after fn and
// the flush succeed, so readers never see a partial file.
func WriteFileAtomic(path string, perm os.FileMode, fn func(w io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
