// Package model manages loaded generative models: a process-wide cache that
// loads lazily and memoizes, and a registry mapping logical names to handles.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/sofai/sofaid/internal/inference"
)

// Handle is a loaded, ready-to-generate model. At most one Handle exists per
// cache key for the lifetime of the process.
type Handle struct {
	Identifier string
	Revision   string
	ReducedBit bool
	Device     string
	PadToken   string
	Engine     inference.Engine
}

// LoadSpec identifies a model load. Callers must not vary TrustRemoteCode
// under an otherwise identical spec: the first load wins and later calls
// return the cached handle without re-validating parameters.
type LoadSpec struct {
	Identifier      string
	TrustRemoteCode bool
	ReducedBit      bool
	Revision        string
}

// Key returns the cache key: identifier, precision mode, revision.
func (s LoadSpec) Key() string {
	precision := "full"
	if s.ReducedBit {
		precision = "reduced"
	}
	revision := s.Revision
	if revision == "" {
		revision = "main"
	}
	return s.Identifier + ":" + precision + ":" + revision
}

// Cache memoizes model loads against the inference runner. Loads of distinct
// keys proceed in parallel; concurrent first loads of the same key are
// collapsed into one runner call. The cache never evicts or reloads.
type Cache struct {
	runner *inference.Client

	mu      sync.Mutex
	handles map[string]*Handle
	loads   map[string]*sync.Mutex
}

// NewCache creates an empty cache backed by the given runner client.
func NewCache(runner *inference.Client) *Cache {
	return &Cache{
		runner:  runner,
		handles: make(map[string]*Handle),
		loads:   make(map[string]*sync.Mutex),
	}
}

// Load returns the cached handle for spec, performing a one-time load on
// first use. The global lock is held only for map lookups, never across the
// load itself.
func (c *Cache) Load(ctx context.Context, spec LoadSpec) (*Handle, error) {
	key := spec.Key()

	c.mu.Lock()
	if h, ok := c.handles[key]; ok {
		c.mu.Unlock()
		return h, nil
	}
	keyLock, ok := c.loads[key]
	if !ok {
		keyLock = &sync.Mutex{}
		c.loads[key] = keyLock
	}
	c.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()

	// A concurrent load may have completed while we waited on the key lock.
	c.mu.Lock()
	if h, ok := c.handles[key]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	h, err := c.load(ctx, spec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.handles[key] = h
	c.mu.Unlock()
	return h, nil
}

// load performs the expensive runner round-trips: probe hardware, then load
// tokenizer and model with device-appropriate options.
func (c *Cache) load(ctx context.Context, spec LoadSpec) (*Handle, error) {
	info, err := c.runner.Health(ctx)
	if err != nil {
		return nil, err
	}

	device := inference.DeviceCPU
	if info.Accelerator {
		device = inference.DeviceAccelerator
	}

	req := inference.LoadRequest{
		Repo:            spec.Identifier,
		Revision:        spec.Revision,
		TrustRemoteCode: spec.TrustRemoteCode,
		Device:          device,
		PadFallback:     true,
	}
	if device == inference.DeviceAccelerator {
		// Reduced-bit loading is only meaningful on accelerator hardware.
		req.ReducedBit = spec.ReducedBit
	} else {
		req.LowMemory = true
	}
	if req.Revision == "" {
		req.Revision = "main"
	}

	result, err := c.runner.Load(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model: load %s: %w", spec.Identifier, err)
	}

	return &Handle{
		Identifier: spec.Identifier,
		Revision:   req.Revision,
		ReducedBit: req.ReducedBit,
		Device:     result.Device,
		PadToken:   result.PadToken,
		Engine:     c.runner.Model(result.ModelID),
	}, nil
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
