package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"pastry/pkg/domain"
)

// LRU is the in-process hot set. Pastes are immutable and never
// deleted, so entries have no expiry and are evicted only by size.
type LRU struct {
	c *lru.Cache[string, *domain.Paste]
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, *domain.Paste](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(id string) *domain.Paste {
	p, ok := l.c.Get(id)
	if !ok {
		return nil
	}
	return p
}

func (l *LRU) Set(p *domain.Paste) {
	l.c.Add(p.ID, p)
}

func (l *LRU) Len() int {
	return l.c.Len()
}
