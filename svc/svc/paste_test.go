package svc

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastry/cfg"
	"pastry/pkg/domain"
	"pastry/svc/cache"
	"pastry/svc/db"
	"pastry/svc/util"
)

var testDBCounter int64

func testCfg() *cfg.Cfg {
	return &cfg.Cfg{
		MaxPasteChars: 10000,
		LRUCacheSize:  64,
	}
}

func newTestService(t *testing.T) (*Paste, *db.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:svcdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	store, err := db.Open(dsn, 5, 2, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	lru, err := cache.NewLRU(64)
	require.NoError(t, err)
	return NewPaste(store, lru, nil, testCfg()), store
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	p, _ := newTestService(t)
	ctx := context.Background()

	content := "line one\nline two\n\ttabs and \U0001F980 crab"
	created, err := p.Create(ctx, content)
	require.NoError(t, err)
	assert.True(t, util.ValidToken(created.ID))
	assert.Equal(t, content, created.Content)
	assert.WithinDuration(t, time.Now().UTC(), created.CreatedAt, 5*time.Second)

	got, err := p.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, content, got.Content)
}

func TestCreateValidation(t *testing.T) {
	p, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "", domain.ErrInvalidContent},
		{"over limit ascii", strings.Repeat("a", 10001), domain.ErrContentTooLong},
		{"over limit multibyte", strings.Repeat("日", 10001), domain.ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Create(ctx, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected pastes must leave no rows behind.
	var count int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM pastes").Scan(&count))
	assert.Zero(t, count)
}

func TestCreateAcceptsBoundaryContent(t *testing.T) {
	p, _ := newTestService(t)
	ctx := context.Background()

	for _, content := range []string{
		"x",
		" ",
		strings.Repeat("a", 10000),
		strings.Repeat("日", 10000),
	} {
		created, err := p.Create(ctx, content)
		require.NoError(t, err, "content of %d runes", len([]rune(content)))
		got, err := p.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, content, got.Content)
	}
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	p, _ := newTestService(t)
	ctx := context.Background()

	_, err := p.store.Insert(ctx, "aaaa1111", "squatter")
	require.NoError(t, err)

	ids := []string{"aaaa1111", "aaaa1111", "bbbb2222"}
	calls := 0
	p.newID = func() (string, error) {
		id := ids[calls]
		calls++
		return id, nil
	}

	created, err := p.Create(ctx, "eventually lands")
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", created.ID)
	assert.Equal(t, 3, calls)
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	p, _ := newTestService(t)
	ctx := context.Background()

	_, err := p.store.Insert(ctx, "aaaa1111", "squatter")
	require.NoError(t, err)

	calls := 0
	p.newID = func() (string, error) {
		calls++
		return "aaaa1111", nil
	}

	_, err = p.Create(ctx, "never lands")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIDConflict)
	assert.Equal(t, maxIDAttempts, calls)
}

func TestGetRejectsMalformedIDs(t *testing.T) {
	p, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"doesnotexist", "ABCD1234", "1234567", "", "../../etc"} {
		_, err := p.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrPasteNotFound, "id %q", id)
	}
}

func TestGetMissingWellFormedID(t *testing.T) {
	p, _ := newTestService(t)
	_, err := p.Get(context.Background(), "0123abcd")
	assert.ErrorIs(t, err, domain.ErrPasteNotFound)
}

func TestGetServesFromLRUWithoutStore(t *testing.T) {
	p, store := newTestService(t)
	ctx := context.Background()

	created, err := p.Create(ctx, "cached forever")
	require.NoError(t, err)

	// With the database gone, the hot path still answers.
	require.NoError(t, store.Close())
	got, err := p.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached forever", got.Content)
}
