// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package uniform implements the content-addressed cache for small
// immutable uniform buffers: GetOrCreate hashes a uniform struct's bytes,
// returns a cached GPU buffer on hit, and creates+inserts on miss.
// Uniform buffers are never built by ad hoc closures at call sites —
// kernel launchers always go through a fixed-layout struct (see package
// kernels' uniform encoders) whose bytes hash deterministically.
package uniform

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/gogpu/llmkernel"
	"github.com/gogpu/wgpu"
)

// Creator is the narrow device surface the cache needs on a miss.
type Creator interface {
	CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
}

// Config tunes cache capacity and staleness.
type Config struct {
	MaxEntries int
	MaxAge     time.Duration
}

// DefaultConfig returns reasonable defaults: 256 entries, 30s staleness.
func DefaultConfig() Config {
	return Config{MaxEntries: 256, MaxAge: 30 * time.Second}
}

type entry struct {
	buf          *wgpu.Buffer
	refCount     int64
	lastUsedMono int64
	createdAt    time.Time
}

// Cache is the content-addressed uniform buffer cache. The zero value is
// not usable; construct with New.
type Cache struct {
	cfg    Config
	submit func(func())

	mu      sync.Mutex
	entries map[uint64]*entry
	mono    int64
	pending []*entry
}

// New constructs an empty Cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:     cfg,
		submit:  func(fn func()) { fn() },
		entries: make(map[uint64]*entry),
	}
}

// SetCompletionScheduler installs the callback used to defer eviction
// destruction until the queue has finished outstanding work, mirroring
// package bufpool's scheduler.
func (c *Cache) SetCompletionScheduler(fn func(onDone func())) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submit = fn
}

// HashBytes computes the FNV-1a content hash used as the cache key.
func HashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b) //nolint:errcheck // hash.Hash.Write never returns an error
	return h.Sum64()
}

// GetOrCreate returns a cached buffer for bytes' content, creating one on
// miss. The returned buffer must not be written to by the caller — it may
// be shared with other callers whose uniform struct hashed identically.
func (c *Cache) GetOrCreate(device Creator, queue interface {
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error
}, bytes []byte, label string) (*wgpu.Buffer, error) {
	key := HashBytes(bytes)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mono++
		e.lastUsedMono = c.mono
		e.refCount++
		buf := e.buf
		c.mu.Unlock()
		return buf, nil
	}
	c.mu.Unlock()

	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(bytes)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if err := queue.WriteBuffer(buf, 0, bytes); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have inserted the same key while we were
	// creating; prefer the existing entry and let ours be released by the
	// caller's own cleanup path (there is none here — single-writer
	// callers are expected, consistent with this core's single-threaded
	// host assumption, see DESIGN.md).
	if e, ok := c.entries[key]; ok {
		return e.buf, nil
	}
	c.mono++
	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = &entry{buf: buf, refCount: 1, lastUsedMono: c.mono, createdAt: now()}
	return buf, nil
}

// Release decrements the ref count for the entry holding buf, if any.
func (c *Cache) Release(buf *wgpu.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.buf == buf && e.refCount > 0 {
			e.refCount--
			return
		}
	}
}

// evictOneLocked implements the eviction policy: prefer entries with
// refCount == 0, lowest lastUsedMono; fall back to LRU regardless of
// refCount. Caller must hold c.mu.
func (c *Cache) evictOneLocked() {
	var victimKey uint64
	var victim *entry
	haveZeroRef := false

	for key, e := range c.entries {
		if e.refCount == 0 {
			if !haveZeroRef || e.lastUsedMono < victim.lastUsedMono {
				victimKey, victim, haveZeroRef = key, e, true
			}
		} else if !haveZeroRef && (victim == nil || e.lastUsedMono < victim.lastUsedMono) {
			victimKey, victim = key, e
		}
	}
	if victim == nil {
		return
	}
	delete(c.entries, victimKey)
	c.pending = append(c.pending, victim)
	llmkernel.Logger().Debug("uniform: evicted cache entry", "key", victimKey, "refCount", victim.refCount)
}

// EvictStale removes entries older than cfg.MaxAge on demand. A zero
// MaxAge disables staleness eviction.
func (c *Cache) EvictStale() {
	if c.cfg.MaxAge <= 0 {
		return
	}
	cutoff := now().Add(-c.cfg.MaxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, key)
			c.pending = append(c.pending, e)
		}
	}
}

// Flush destroys every pending-eviction buffer, scheduled through the
// completion callback. Typically
// invoked by the command recorder after onSubmittedWorkDone.
func (c *Cache) Flush() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	submit := c.submit
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	submit(func() {
		for _, e := range pending {
			e.buf.Release()
		}
	})
}

// Clear evicts every entry immediately (including live ones) and flushes
// pending destruction. Intended for device-lost recovery.
func (c *Cache) Clear() {
	c.mu.Lock()
	for _, e := range c.entries {
		c.pending = append(c.pending, e)
	}
	c.entries = make(map[uint64]*entry)
	c.mu.Unlock()
	c.Flush()
}

// Len returns the current entry count, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var now = time.Now
