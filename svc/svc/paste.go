package svc

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"pastry/cfg"
	"pastry/metrics"
	"pastry/pkg/domain"
	"pastry/svc/cache"
	"pastry/svc/db"
	"pastry/svc/util"
)

// maxIDAttempts bounds regeneration when a fresh id collides with an
// existing row. With four random bytes collisions stay rare well into
// the tens of thousands of rows, so the loop almost never runs twice.
const maxIDAttempts = 5

// Paste implements the service operations over the sqlite store with
// two read caches in front: a per-process LRU and, when configured, a
// shared Redis. Pastes are immutable so neither cache ever needs
// invalidation.
type Paste struct {
	store    *db.Store
	lru      *cache.LRU
	rdb      *db.Redis
	cfg      *cfg.Cfg
	validate *validator.Validate
	group    singleflight.Group
	newID    func() (string, error)
}

func NewPaste(store *db.Store, lru *cache.LRU, rdb *db.Redis, c *cfg.Cfg) *Paste {
	if store == nil || lru == nil || c == nil {
		panic("paste service: nil dependency (store, lru, or cfg)")
	}
	return &Paste{
		store:    store,
		lru:      lru,
		rdb:      rdb,
		cfg:      c,
		validate: validator.New(),
		newID:    util.NewToken,
	}
}

// validateContent applies the content rules: non-empty and at most
// MaxPasteChars characters. The limit counts characters, not bytes,
// so multibyte text is not penalized. Whitespace-only content is
// accepted; trimming is the widget's concern.
func (p *Paste) validateContent(content string) error {
	if err := p.validate.Var(content, "required"); err != nil {
		return domain.ErrInvalidContent
	}
	if err := p.validate.Var(content, fmt.Sprintf("max=%d", p.cfg.MaxPasteChars)); err != nil {
		return domain.ErrContentTooLong
	}
	return nil
}

// Create validates content, generates an id and persists the paste.
// On an id collision it regenerates and retries; nothing is written
// for invalid content. Content is stored verbatim.
func (p *Paste) Create(ctx context.Context, content string) (*domain.Paste, error) {
	if err := p.validateContent(content); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := p.newID()
		if err != nil {
			return nil, errors.Wrap(err, "generate id")
		}
		createdAt, err := p.store.Insert(ctx, id, content)
		if errors.Is(err, domain.ErrIDConflict) {
			metrics.IDCollisions.Inc()
			util.Warn().Str("id", id).Int("attempt", attempt).Msg("paste id collision, regenerating")
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert paste")
		}
		paste := &domain.Paste{ID: id, Content: content, CreatedAt: createdAt}
		p.cachePaste(ctx, paste)
		metrics.PasteCreated.Inc()
		return paste, nil
	}
	return nil, errors.Wrapf(domain.ErrIDConflict, "exhausted %d id attempts", maxIDAttempts)
}

// Get returns the paste with the given id or domain.ErrPasteNotFound.
// Ids that do not even look like paste identifiers are rejected before
// touching any backend. Concurrent misses for the same id are collapsed
// into a single lookup.
func (p *Paste) Get(ctx context.Context, id string) (*domain.Paste, error) {
	if !util.ValidToken(id) {
		return nil, domain.ErrPasteNotFound
	}
	if paste := p.lru.Get(id); paste != nil {
		metrics.CacheHits.Inc()
		metrics.PasteRetrieved.Inc()
		return paste, nil
	}
	metrics.CacheMisses.Inc()
	v, err, _ := p.group.Do(id, func() (interface{}, error) {
		return p.lookup(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	paste := v.(*domain.Paste)
	metrics.PasteRetrieved.Inc()
	return paste, nil
}

func (p *Paste) lookup(ctx context.Context, id string) (*domain.Paste, error) {
	if p.rdb != nil {
		paste, err := p.rdb.GetPaste(ctx, id)
		if err != nil {
			util.Warn().Err(err).Str("id", id).Msg("redis read failed, falling back to sqlite")
		} else if paste != nil {
			metrics.CacheHits.Inc()
			p.lru.Set(paste)
			return paste, nil
		}
	}
	paste, err := p.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "get paste")
	}
	p.cachePaste(ctx, paste)
	return paste, nil
}

// cachePaste fills both cache tiers. Failures only cost future reads a
// trip to sqlite, so they are logged and swallowed.
func (p *Paste) cachePaste(ctx context.Context, paste *domain.Paste) {
	p.lru.Set(paste)
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste); err != nil {
			util.Warn().Err(err).Str("id", paste.ID).Msg("failed to cache in Redis")
		}
	}
}
