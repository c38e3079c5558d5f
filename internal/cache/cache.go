// Package cache provides gob encoded, file backed caches.
package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Type represents the type of cache being used.
type Type string

// Cache types for different purposes.
const (
	ConversationCache Type = "conversations"
	FunctionCache     Type = "functions"
)

const cacheExt = ".gob"

var errInvalidID = errors.New("invalid id")

// Cache stores values of type T, one file per id.
type Cache[T any] struct {
	dir string
}

// New creates a new cache instance with the specified base directory and cache type.
func New[T any](baseDir string, cacheType Type) (*Cache[T], error) {
	dir := filepath.Join(baseDir, string(cacheType))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache[T]{dir: dir}, nil
}

func (c *Cache[T]) path(id string) string {
	return filepath.Join(c.dir, id+cacheExt)
}

// Get reads the value stored under id.
func (c *Cache[T]) Get(id string) (T, error) {
	var v T
	if id == "" {
		return v, fmt.Errorf("read: %w", errInvalidID)
	}
	if err := readFile(c.path(id), &v); err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	return v, nil
}

// Put stores a value under id, replacing any previous one.
func (c *Cache[T]) Put(id string, v T) error {
	if id == "" {
		return fmt.Errorf("write: %w", errInvalidID)
	}
	if err := writeFile(c.path(id), v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes a cached item by its ID.
func (c *Cache[T]) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(c.path(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func readFile(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer file.Close() //nolint:errcheck
	if err := gob.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func writeFile(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer file.Close() //nolint:errcheck
	if err := gob.NewEncoder(file).Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
