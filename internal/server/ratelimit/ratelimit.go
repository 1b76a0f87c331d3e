// Package ratelimit throttles API clients per route with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info describes the limit applied to one request
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	limit    int
	lastSeen time.Time
}

// Limiter keeps one token bucket per client and route
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

// NewLimiter creates a limiter and starts the idle-bucket sweeper when enabled
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{cfg: cfg, buckets: make(map[string]*bucket), stop: make(chan struct{})}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow consumes a token for clientID on the route matching path and method
func (l *Limiter) Allow(clientID, path, method string) Info {
	if !l.cfg.Enabled || l.cfg.Whitelist[clientID] {
		return Info{Allowed: true}
	}
	if l.cfg.Blacklist[clientID] {
		return Info{}
	}

	rule := Match(path, method, l.cfg.Rules)
	if rule == nil {
		rule = &Rule{Path: "*", Limit: l.cfg.DefaultLimit, Window: l.cfg.DefaultWindow}
	}
	if rule.Limit <= 0 {
		return Info{Allowed: true}
	}

	b := l.bucket(clientID+"|"+method+"|"+rule.Path, *rule)
	info := Info{Limit: rule.Limit}

	now := time.Now()
	if b.lim.AllowN(now, 1) {
		info.Allowed = true
	} else {
		r := b.lim.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	info.Remaining = max(int(b.lim.TokensAt(now)), 0)
	return info
}

func (l *Limiter) bucket(key string, rule Rule) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		burst := rule.Burst
		if burst <= 0 {
			burst = rule.Limit
		}
		every := rule.Window / time.Duration(rule.Limit)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), burst), limit: rule.Limit}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.Sweep(time.Now().Add(-l.cfg.IdleTTL))
		case <-l.stop:
			return
		}
	}
}

// Sweep drops buckets not used since cutoff
func (l *Limiter) Sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of live buckets
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the sweeper
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
