package test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"pastry/cfg"
	"pastry/svc/api"
	"pastry/svc/cache"
	"pastry/svc/db"
	"pastry/svc/lim"
	"pastry/svc/svc"
	"pastry/svc/util"
)

var (
	envLoadOnce sync.Once
	dbCounter   int64
)

func loadTestEnv() {
	envLoadOnce.Do(func() {
		util.InitLog("error", false)

		paths := []string{
			".env.test",
			"../.env.test",
		}
		for _, p := range paths {
			if absPath, err := filepath.Abs(p); err == nil {
				if _, err := os.Stat(absPath); err == nil {
					if err := godotenv.Load(absPath); err == nil {
						return
					}
				}
			}
		}
	})
}

func createTestConfig() *cfg.Cfg {
	loadTestEnv()

	c, err := cfg.Load()
	if err != nil {
		c = &cfg.Cfg{
			MaxPasteChars:  10000,
			StaticDir:      "static",
			LRUCacheSize:   1024,
			RateLimit:      cfg.RateLimitCfg{RPM: 60, Burst: 10},
			ContextTimeout: 5 * time.Second,
			DBMaxOpenConns: 25,
			DBMaxIdleConns: 5,
			DBQueryTimeout: 5 * time.Second,
		}
	}

	c.Port = "0"
	c.Environment = "test"
	c.LogLevel = "error"
	c.DatabasePath = ":memory:"
	return c
}

func createTestDB(t *testing.T, c *cfg.Cfg) *db.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:itestdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))

	maxOpenConns := c.DBMaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 25
	}
	maxIdleConns := c.DBMaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	queryTimeout := c.DBQueryTimeout
	if queryTimeout == 0 {
		queryTimeout = 10 * time.Second
	}

	store, err := db.Open(dsn, maxOpenConns, maxIdleConns, queryTimeout)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func createTestLRU(t *testing.T, size int) *cache.LRU {
	t.Helper()
	lru, err := cache.NewLRU(size)
	if err != nil {
		t.Fatal(err)
	}
	return lru
}

func newLimiterRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest("POST", "/api/paste", nil)
	req.RemoteAddr = remoteAddr
	return req
}

// setupTestServer wires the full stack over an in-memory database, with
// rate limits raised far enough that only tests which lower them again
// ever trip the limiter.
func setupTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()

	c := createTestConfig()
	if c.RateLimit.RPM < 100000 {
		c.RateLimit.RPM = 100000
		c.RateLimit.Burst = 10000
	}

	store := createTestDB(t, c)
	lru := createTestLRU(t, c.LRUCacheSize)
	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, nil)
	pasteSvc := svc.NewPaste(store, lru, nil, c)
	server := api.NewServer(c, pasteSvc, limiter, store, nil)

	ts := httptest.NewServer(server)

	cleanup := func() {
		ts.Close()
		limiter.Stop()
		store.Close()
	}
	return ts, cleanup
}
