package lim

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pastry/svc/util"
)

const (
	maxLimiters     = 10000
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
)

// Limiter keeps one token bucket per client IP and endpoint class.
// Buckets idle past limiterTTL are evicted by a background loop; at
// capacity the limiter fails closed rather than growing without bound.
type Limiter struct {
	trustedProxies []string
	buckets        map[string]*bucketEntry
	mu             sync.Mutex
	rpm            int
	burst          int
	quit           chan struct{}
}

type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

func New(rpm, burst int, trustedProxies []string) *Limiter {
	for _, proxy := range trustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				panic(fmt.Sprintf("invalid CIDR in trustedProxies: %s: %v", proxy, err))
			}
		} else {
			if net.ParseIP(proxy) == nil {
				panic(fmt.Sprintf("invalid IP in trustedProxies: %s", proxy))
			}
		}
	}
	l := &Limiter{
		trustedProxies: trustedProxies,
		buckets:        make(map[string]*bucketEntry),
		rpm:            rpm,
		burst:          burst,
		quit:           make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) Stop() {
	close(l.quit)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			evicted := l.evictIdleLocked()
			remaining := len(l.buckets)
			l.mu.Unlock()
			if evicted > 0 {
				util.Debug().Int("evicted", evicted).Int("remaining", remaining).Msg("rate limiter cleanup")
			}
		case <-l.quit:
			return
		}
	}
}

func (l *Limiter) evictIdleLocked() int {
	now := time.Now()
	evicted := 0
	for key, entry := range l.buckets {
		if now.Sub(entry.lastAccess) > limiterTTL {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Allow charges one request against the caller's bucket for the given
// endpoint class and reports whether it may proceed.
func (l *Limiter) Allow(r *http.Request, endpoint string) *Result {
	ip := GetRealIP(r, l.trustedProxies)
	key := ip + ":" + endpoint

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLimiters {
			l.evictIdleLocked()
		}
		if len(l.buckets) >= maxLimiters {
			util.Warn().
				Int("buckets", len(l.buckets)).
				Str("ip", util.RedactIP(ip)).
				Msg("rate limiter at capacity, rejecting request")
			return &Result{
				Allowed:   false,
				Limit:     l.rpm,
				Remaining: 0,
				Reset:     time.Now().Add(time.Minute),
			}
		}
		entry = &bucketEntry{
			limiter: rate.NewLimiter(rate.Limit(l.rpm)/60.0, l.burst),
		}
		l.buckets[key] = entry
	}
	entry.lastAccess = time.Now()

	allowed := entry.limiter.Allow()
	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     l.rpm,
		Remaining: remaining,
		Reset:     time.Now().Add(time.Minute),
	}
}

// GetRealIP resolves the client address. X-Forwarded-For is only
// honored when the direct peer is a trusted proxy, and the header is
// walked right to left so a client cannot spoof its way past the
// limiter by prepending addresses.
func GetRealIP(r *http.Request, trustedProxies []string) string {
	remoteIP := stripPort(r.RemoteAddr)
	if len(trustedProxies) == 0 {
		return remoteIP
	}
	if !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}

	const maxIPsToParse = 100
	parsedCount := 0
	remaining := xff
	for len(remaining) > 0 && parsedCount < maxIPsToParse {
		lastComma := strings.LastIndexByte(remaining, ',')
		var ipStr string
		if lastComma == -1 {
			ipStr = strings.TrimSpace(remaining)
			remaining = ""
		} else {
			ipStr = strings.TrimSpace(remaining[lastComma+1:])
			remaining = remaining[:lastComma]
		}
		if ipStr == "" {
			continue
		}
		parsedCount++
		if net.ParseIP(ipStr) == nil {
			util.Warn().Str("ip", util.RedactIP(ipStr)).Msg("invalid IP in X-Forwarded-For, skipping")
			continue
		}
		if !isTrustedProxy(ipStr, trustedProxies) {
			return ipStr
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedProxies []string) bool {
	for _, proxy := range trustedProxies {
		if ip == proxy {
			return true
		}
		if strings.Contains(proxy, "/") {
			_, subnet, err := net.ParseCIDR(proxy)
			if err == nil {
				parsedIP := net.ParseIP(ip)
				if parsedIP != nil && subnet.Contains(parsedIP) {
					return true
				}
			}
		}
	}
	return false
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
