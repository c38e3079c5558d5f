package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrExpired happens when reading an item whose time is up.
var ErrExpired = errors.New("cache item expired")

// ExpiringCache is a cache whose items are only valid for some time.
//
// Items are stored as "<id>.<unix expiry>" files, so expiry can be checked
// without decoding them.
type ExpiringCache[T any] struct {
	dir string
	now func() time.Time
}

// NewExpiring creates a new expiring cache of the given type.
func NewExpiring[T any](path string, cacheType Type) (*ExpiringCache[T], error) {
	cache, err := New[T](path, cacheType)
	if err != nil {
		return nil, fmt.Errorf("create expiring cache: %w", err)
	}
	return &ExpiringCache[T]{dir: cache.dir, now: time.Now}, nil
}

func (c *ExpiringCache[T]) matches(id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, id+".*"))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}
	return matches, nil
}

// Get returns the item stored under id. It fails with [os.ErrNotExist] if
// there is none, and with [ErrExpired] if it expired, in which case it is
// also removed.
func (c *ExpiringCache[T]) Get(id string) (T, error) {
	var v T
	if id == "" {
		return v, fmt.Errorf("read: %w", errInvalidID)
	}
	matches, err := c.matches(id)
	if err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	if len(matches) == 0 {
		return v, fmt.Errorf("read: %w", os.ErrNotExist)
	}

	name := filepath.Base(matches[0])
	expiresAt, err := strconv.ParseInt(strings.TrimPrefix(name, id+"."), 10, 64)
	if err != nil {
		return v, fmt.Errorf("read: invalid expiration timestamp: %s", name)
	}
	if expiresAt < c.now().Unix() {
		if err := os.Remove(matches[0]); err != nil {
			return v, fmt.Errorf("remove expired item: %w", err)
		}
		return v, ErrExpired
	}

	if err := readFile(matches[0], &v); err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	return v, nil
}

// Put stores v under id until ttl elapses, replacing any previous item.
func (c *ExpiringCache[T]) Put(id string, v T, ttl time.Duration) error {
	if err := c.Delete(id); err != nil {
		return err
	}
	expiresAt := c.now().Add(ttl).Unix()
	path := filepath.Join(c.dir, fmt.Sprintf("%s.%d", id, expiresAt))
	if err := writeFile(path, v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the item stored under id, if any.
func (c *ExpiringCache[T]) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	matches, err := c.matches(id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
	}
	return nil
}
