/*
Package store persists the server's JSON documents.

Every entity kind (users, roles, channels, per-channel message logs) lives in whole
documents addressed by (kind, key). A document is read in full and rewritten in full;
an absent document reads as the empty value. Writers to the same key are serialized so
concurrent read-modify-write cycles never lose updates.
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Backend.Read when the document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Backend is the raw document storage used by collections.
type Backend interface {
	// Read returns the document body, or ErrNotFound.
	Read(ctx context.Context, kind, key string) ([]byte, error)

	// Write replaces the document body atomically.
	Write(ctx context.Context, kind, key string, data []byte) error

	// Remove deletes the document. Removing an absent document is not an error.
	Remove(ctx context.Context, kind, key string) error

	Close() error
}

// keyLocks hands out one mutex per document key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// Collection is a typed view over all documents of one kind.
type Collection[T any] struct {
	backend Backend
	kind    string
	locks   keyLocks
}

// NewCollection returns a collection of kind stored in backend.
func NewCollection[T any](backend Backend, kind string) *Collection[T] {
	return &Collection[T]{backend: backend, kind: kind}
}

// Get loads the document at key. A missing document yields the zero value of T.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var v T

	data, err := c.backend.Read(ctx, c.kind, key)
	if errors.Is(err, ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("read %s/%s: %w", c.kind, key, err)
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.kind, key, err)
	}
	return v, nil
}

// Update runs fn against the current document and writes the result back.
// Calls for the same key are serialized. If fn returns an error nothing is written
// and the error is returned unchanged.
func (c *Collection[T]) Update(ctx context.Context, key string, fn func(*T) error) error {
	l := c.locks.get(key)
	l.Lock()
	defer l.Unlock()

	v, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := fn(&v); err != nil {
		return err
	}
	return c.put(ctx, key, v)
}

// Move merges the document at from into the document at to and removes from.
// Both keys stay locked for the whole move, so no concurrent Update of either key
// can interleave with it. If merge returns an error nothing is written.
func (c *Collection[T]) Move(ctx context.Context, from, to string, merge func(src T, dst *T) error) error {
	if from == to {
		return nil
	}

	// Locks are always taken in key order.
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	l1, l2 := c.locks.get(first), c.locks.get(second)
	l1.Lock()
	defer l1.Unlock()
	l2.Lock()
	defer l2.Unlock()

	src, err := c.Get(ctx, from)
	if err != nil {
		return err
	}
	dst, err := c.Get(ctx, to)
	if err != nil {
		return err
	}
	if err := merge(src, &dst); err != nil {
		return err
	}
	if err := c.put(ctx, to, dst); err != nil {
		return err
	}

	if err := c.backend.Remove(ctx, c.kind, from); err != nil {
		return fmt.Errorf("remove %s/%s: %w", c.kind, from, err)
	}
	return nil
}

func (c *Collection[T]) put(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.kind, key, err)
	}

	if err := c.backend.Write(ctx, c.kind, key, data); err != nil {
		return fmt.Errorf("write %s/%s: %w", c.kind, key, err)
	}
	return nil
}

// Delete removes the document at key.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	l := c.locks.get(key)
	l.Lock()
	defer l.Unlock()

	if err := c.backend.Remove(ctx, c.kind, key); err != nil {
		return fmt.Errorf("remove %s/%s: %w", c.kind, key, err)
	}
	return nil
}
