package treepredict

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/pkg/log"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/legacy"
)

// Cache keeps one Handle per model so each payload is parsed or decoded at
// most once, even when many goroutines ask for it at the same time.
// Failures are not cached.
type Cache struct {
	opts options
	log  log.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
	group   singleflight.Group

	loads atomic.Int64
}

// NewCache returns an empty cache.
func NewCache(opts ...Option) *Cache {
	o := buildOptions(opts)
	return &Cache{
		opts:    o,
		log:     o.logger.With(log.ComponentKey, "cache"),
		handles: make(map[string]*Handle),
	}
}

func cacheKey(id string, t model.ModelType) string {
	return strconv.Itoa(int(t)) + "/" + id
}

// Get returns the handle for id, loading payload on first use. The payload
// is only read on a miss. hit reports whether the handle was already cached.
func (c *Cache) Get(id string, t model.ModelType, payload []byte) (h *Handle, hit bool, err error) {
	key := cacheKey(id, t)

	c.mu.RLock()
	h, ok := c.handles[key]
	c.mu.RUnlock()
	if ok {
		return h, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		h, ok := c.handles[key]
		c.mu.RUnlock()
		if ok {
			return h, nil
		}

		h, err := c.load(id, t, payload)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.handles[key] = h
		size := len(c.handles)
		c.mu.Unlock()

		c.log.Debug("Model cached",
			log.ModelIDKey, id,
			log.CacheSizeKey, size,
		)
		return h, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Handle), false, nil
}

func (c *Cache) load(id string, t model.ModelType, payload []byte) (*Handle, error) {
	start := time.Now()
	c.loads.Add(1)

	m, err := model.FromPayload(id, t, payload)
	if err != nil {
		return nil, errors.NewModelError(id, log.OperationDecode, err)
	}
	h, err := load(m, c.opts)
	if err != nil {
		return nil, errors.NewModelError(id, loadOperation(t), err)
	}

	logger := c.log.With(log.ModelIDKey, id, log.ModelTypeKey, t.String())
	if h.program != nil {
		logger.Info("Script parsed",
			log.OperationKey, log.OperationParse,
			log.InstructionsKey, h.program.Len(),
			log.MaxStackKey, h.program.MaxStack(),
			log.PayloadBytesKey, len(payload),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		return h, nil
	}

	stats := legacy.Inspect(h.root)
	logger.Info("Legacy model decoded",
		log.OperationKey, log.OperationDecode,
		log.TaskKey, h.task.String(),
		log.NodesKey, stats.Nodes,
		log.DepthKey, stats.Depth,
		log.PayloadBytesKey, len(payload),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if !c.opts.verify {
		errors.Warn(errors.NewUnverifiedModelWarning(id))
	}
	return h, nil
}

func loadOperation(t model.ModelType) string {
	if t.Base() == model.Opcode {
		return log.OperationParse
	}
	return log.OperationDecode
}

// Evict drops the handle for id. Evaluations holding it are unaffected.
func (c *Cache) Evict(id string, t model.ModelType) {
	c.mu.Lock()
	delete(c.handles, cacheKey(id, t))
	c.mu.Unlock()
}

// Purge drops every handle.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Loads returns how many payloads have been parsed or decoded, failed
// attempts included.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}
