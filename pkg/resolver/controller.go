// Package resolver deduplicates and caches POI enrichments for the detail view.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"poiatlas/pkg/cache"
	"poiatlas/pkg/config"
	"poiatlas/pkg/enrich"
	"poiatlas/pkg/model"
)

// Orchestrator runs one enrichment and completes galleries in the background.
type Orchestrator interface {
	Enrich(ctx context.Context, q enrich.Query) (*enrich.Result, error)
	Refine(ctx context.Context, current, pool []string) []string
}

// Options tune cache lifetimes.
type Options struct {
	TTL           time.Duration // found records
	NegativeTTL   time.Duration // "nothing found" results
	RefineTimeout time.Duration
}

// OptionsFrom maps the cache section of the configuration onto Options.
func OptionsFrom(c config.CacheConfig) Options {
	return Options{
		TTL:           time.Duration(c.TTL),
		NegativeTTL:   time.Duration(c.NegativeTTL),
		RefineTimeout: 2 * time.Minute,
	}
}

// Entry is a cached resolution. A nil Info records that nothing was found.
type Entry struct {
	Info      *model.PoiInfo `json:"info"`
	Pool      []string       `json:"pool,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// UpdateKind distinguishes update events.
type UpdateKind string

const (
	UpdateOpened  UpdateKind = "opened"
	UpdateRefined UpdateKind = "refined"
)

// Update is pushed to subscribers whenever the visible record changes.
type Update struct {
	Kind UpdateKind     `json:"kind"`
	ID   int64          `json:"id"`
	Seq  uint64         `json:"seq"`
	Info *model.PoiInfo `json:"info"`
}

// Selection is the POI currently shown in the detail view.
type Selection struct {
	ID   int64          `json:"id"`
	Seq  uint64         `json:"seq"`
	Info *model.PoiInfo `json:"info"`
}

type flight struct {
	done chan struct{}
	info *model.PoiInfo
	err  error
}

// Controller owns the resolution cache, the in-flight map, the request
// sequence and the visible selection. At most one enrichment runs per POI ID.
type Controller struct {
	orch    Orchestrator
	backing cache.Cacher
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	entries  map[int64]*Entry
	inflight map[int64]*flight
	refining map[int64]uint64 // newest Open sequence per running refinement
	seq      uint64
	visible  *Selection
	subs     map[int]chan Update
	nextSub  int
}

// New creates a Controller. backing may be nil for a memory-only cache.
func New(orch Orchestrator, backing cache.Cacher, opts Options) *Controller {
	if opts.TTL <= 0 {
		opts.TTL = 14 * config.Day
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = time.Hour
	}
	if opts.RefineTimeout <= 0 {
		opts.RefineTimeout = 2 * time.Minute
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Controller{
		orch:     orch,
		backing:  backing,
		opts:     opts,
		logger:   slog.With("component", "resolver"),
		now:      time.Now,
		bg:       bg,
		cancel:   cancel,
		entries:  make(map[int64]*Entry),
		inflight: make(map[int64]*flight),
		refining: make(map[int64]uint64),
		subs:     make(map[int]chan Update),
	}
}

// Resolve returns the record for id, running the enrichment only when no live
// cache entry exists and none is in flight. A nil record means nothing was found.
// An enrichment that was started always completes and populates the cache, even
// when ctx is cancelled while waiting.
func (c *Controller) Resolve(ctx context.Context, id int64, q enrich.Query) (*model.PoiInfo, error) {
	c.mu.Lock()
	if c.bg.Err() != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := c.entries[id]; ok && c.fresh(e) {
		info := e.Info.Clone()
		c.mu.Unlock()
		return info, nil
	}
	f, joined := c.inflight[id]
	if !joined {
		f = &flight{done: make(chan struct{})}
		c.inflight[id] = f
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if joined {
		c.logger.Debug("Joining in-flight resolution", "id", id)
	} else {
		go c.run(context.WithoutCancel(ctx), id, q, f)
	}

	select {
	case <-f.done:
		return f.info.Clone(), f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, id int64, q enrich.Query, f *flight) {
	defer c.wg.Done()
	defer close(f.done)

	entry, ok := c.load(ctx, id)
	if !ok {
		res, err := c.orch.Enrich(ctx, q)
		if err != nil {
			c.logger.Warn("Resolution failed", "id", id, "error", err)
			c.mu.Lock()
			delete(c.inflight, id)
			c.mu.Unlock()
			f.err = fmt.Errorf("resolve poi %d: %w", id, err)
			return
		}
		entry = &Entry{UpdatedAt: c.now()}
		if res != nil {
			entry.Info, entry.Pool = res.Info, res.Pool
		}
		c.persist(ctx, id, entry)
	}

	c.mu.Lock()
	c.entries[id] = entry
	delete(c.inflight, id)
	c.mu.Unlock()

	f.info = entry.Info
	c.logger.Debug("Resolved", "id", id, "found", entry.Info != nil, "pool", len(entry.Pool))
}

// Open resolves id for the detail view. The result becomes the visible
// selection only if no newer Open started meanwhile; the gallery is then
// completed in the background. It returns the record and the request sequence.
func (c *Controller) Open(ctx context.Context, id int64, q enrich.Query) (*model.PoiInfo, uint64, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	info, err := c.Resolve(ctx, id, q)
	if err != nil {
		return nil, seq, err
	}

	c.mu.Lock()
	if seq == c.seq {
		c.visible = &Selection{ID: id, Seq: seq, Info: info.Clone()}
		c.publishLocked(Update{Kind: UpdateOpened, ID: id, Seq: seq, Info: info.Clone()})
	} else {
		c.logger.Debug("Discarding stale open", "id", id, "seq", seq, "latest", c.seq)
	}
	c.startRefineLocked(id, seq)
	c.mu.Unlock()

	return info, seq, nil
}

func (c *Controller) startRefineLocked(id int64, seq uint64) {
	if latest, running := c.refining[id]; running {
		// A later open of the same POI adopts the running refinement.
		if seq > latest {
			c.refining[id] = seq
		}
		return
	}
	e, ok := c.entries[id]
	if !ok || e.Info == nil || len(e.Pool) == 0 || c.bg.Err() != nil {
		return
	}
	c.refining[id] = seq
	current := append([]string(nil), e.Info.Images...)
	pool := append([]string(nil), e.Pool...)

	c.wg.Add(1)
	go c.refine(id, seq, current, pool)
}

func (c *Controller) refine(id int64, seq uint64, current, pool []string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.bg, c.opts.RefineTimeout)
	defer cancel()
	images := c.orch.Refine(ctx, current, pool)

	c.mu.Lock()
	if latest := c.refining[id]; latest > seq {
		seq = latest
	}
	delete(c.refining, id)
	e, ok := c.entries[id]
	if !ok || e.Info == nil || (images == nil && ctx.Err() != nil) {
		// Evicted, or interrupted with the pool kept for a later open.
		c.mu.Unlock()
		return
	}
	e.Pool = nil
	if images != nil {
		info := e.Info.Clone()
		info.Images = images
		if info.Image == "" {
			info.Image = images[0]
		}
		e.Info = info
		c.logger.Debug("Gallery refined", "id", id, "images", len(images))

		if seq == c.seq && c.visible != nil && c.visible.ID == id {
			c.visible.Info = info.Clone()
			c.publishLocked(Update{Kind: UpdateRefined, ID: id, Seq: seq, Info: info.Clone()})
		} else {
			c.logger.Debug("Refinement no longer visible", "id", id, "seq", seq, "latest", c.seq)
		}
	}
	snapshot := *e
	c.mu.Unlock()

	c.persist(context.WithoutCancel(ctx), id, &snapshot)
}

// Cached returns the live cache entry for id without running an enrichment.
func (c *Controller) Cached(ctx context.Context, id int64) (*model.PoiInfo, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && c.fresh(e) {
		info := e.Info.Clone()
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	e, ok := c.load(ctx, id)
	if !ok {
		return nil, ErrNotCached
	}
	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
	return e.Info.Clone(), nil
}

// Evict drops the cached record for id. An in-flight resolution is not affected.
func (c *Controller) Evict(ctx context.Context, id int64) bool {
	c.mu.Lock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	if c.backing != nil {
		if err := c.backing.DeleteCache(ctx, cacheKey(id)); err != nil {
			c.logger.Warn("Failed to evict persisted record", "id", id, "error", err)
		}
	}
	c.logger.Debug("Evicted", "id", id, "cached", ok)
	return ok
}

// Visible returns the current selection.
func (c *Controller) Visible() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible == nil {
		return Selection{}, false
	}
	s := *c.visible
	s.Info = s.Info.Clone()
	return s, true
}

// Subscribe registers for updates. Slow subscribers miss updates rather than
// block the controller. The returned function unsubscribes.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Update, 16)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Controller) publishLocked(u Update) {
	for id, ch := range c.subs {
		select {
		case ch <- u:
		default:
			c.logger.Debug("Subscriber too slow, update dropped", "subscriber", id, "kind", u.Kind)
		}
	}
}

// Prune drops expired entries from memory and returns how many were removed.
func (c *Controller) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, e := range c.entries {
		if !c.fresh(e) {
			delete(c.entries, id)
			count++
		}
	}
	if count > 0 {
		c.logger.Debug("Pruned cache", "removed", count, "remaining", len(c.entries))
	}
	return count
}

// StartPruning runs Prune on every tick until ctx is done.
func (c *Controller) StartPruning(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}

// Stats reports cache occupancy.
func (c *Controller) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	negative := 0
	for _, e := range c.entries {
		if e.Info == nil {
			negative++
		}
	}
	return map[string]int{
		"entries":     len(c.entries),
		"negative":    negative,
		"in_flight":   len(c.inflight),
		"refining":    len(c.refining),
		"subscribers": len(c.subs),
	}
}

// Wait blocks until all started resolutions and refinements are done.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops background refinement and waits for running work.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) fresh(e *Entry) bool {
	ttl := c.opts.TTL
	if e.Info == nil {
		ttl = c.opts.NegativeTTL
	}
	return c.now().Sub(e.UpdatedAt) < ttl
}

func cacheKey(id int64) string {
	return fmt.Sprintf("poi:%d", id)
}

// load reads a persisted entry. Any failure is a miss.
func (c *Controller) load(ctx context.Context, id int64) (*Entry, bool) {
	if c.backing == nil {
		return nil, false
	}
	data, ok := c.backing.GetCache(ctx, cacheKey(id))
	if !ok {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Discarding unreadable persisted record", "id", id, "error", err)
		return nil, false
	}
	if !c.fresh(&e) {
		return nil, false
	}
	return &e, true
}

func (c *Controller) persist(ctx context.Context, id int64, e *Entry) {
	if c.backing == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("Failed to encode record", "id", id, "error", err)
		return
	}
	ttl := c.opts.TTL
	if e.Info == nil {
		ttl = c.opts.NegativeTTL
	}
	ttl -= c.now().Sub(e.UpdatedAt)
	if ttl <= 0 {
		return
	}
	if err := c.backing.SetCache(ctx, cacheKey(id), data, ttl); err != nil {
		c.logger.Warn("Failed to persist record", "id", id, "error", err)
	}
}
