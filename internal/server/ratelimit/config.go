package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one route. A Path ending in "/" matches every path under it.
type Rule struct {
	Path   string
	Method string
	// Limit is the number of requests per Window; 0 means unlimited
	Limit  int
	Window time.Duration
	// Burst defaults to Limit
	Burst int
}

// Config holds rate limiting configuration
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// DefaultRules returns the per-route limits. Uploads start an extraction run and are the
// most expensive; generation context and enrichment call external services.
func DefaultRules() []Rule {
	return []Rule{
		{Path: "/health", Method: "GET", Limit: 0},
		{Path: "/blueprints", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/analyze/stream", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/generation/context", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/artifacts/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// LoadConfig reads DOCDNA_RATE_LIMIT_* environment variables over the defaults
func LoadConfig() Config {
	return Config{
		Enabled:         envBool("DOCDNA_RATE_LIMIT_ENABLED", true),
		DefaultLimit:    envInt("DOCDNA_RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   envDuration("DOCDNA_RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: envDuration("DOCDNA_RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         time.Hour,
		Whitelist:       ipSet(os.Getenv("DOCDNA_RATE_LIMIT_WHITELIST")),
		Blacklist:       ipSet(os.Getenv("DOCDNA_RATE_LIMIT_BLACKLIST")),
		Rules:           DefaultRules(),
	}
}

// Match returns the rule for a request: exact path first, then the longest prefix rule.
func Match(path, method string, rules []Rule) *Rule {
	var best *Rule
	for i := range rules {
		r := &rules[i]
		if r.Method != method {
			continue
		}
		if r.Path == path {
			return r
		}
		if strings.HasSuffix(r.Path, "/") && strings.HasPrefix(path, r.Path) {
			if best == nil || len(r.Path) > len(best.Path) {
				best = r
			}
		}
	}
	return best
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func ipSet(list string) map[string]bool {
	out := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			out[ip] = true
		}
	}
	return out
}
