package ratelimit

import (
	"os"
	"strings"
	"time"

	"github.com/jonathan/hiring-workflow/internal/config"
)

// Rule limits one method on a path or path prefix.
type Rule struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method
	Limit  int           // requests per window; 0 means unlimited
	Window time.Duration // refill window
	Burst  int           // bucket capacity; defaults to Limit
}

// Unlimited reports whether the rule never throttles.
func (r Rule) Unlimited() bool {
	return r.Limit <= 0 || r.Window <= 0
}

func (r Rule) capacity() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// key scopes the counter: matched rules share one budget for every path
// they cover, the default budget is shared by all unmatched requests.
func (r Rule) key(clientID, method string) string {
	if r.Path == "" {
		return clientID + ":*"
	}
	return clientID + ":" + method + ":" + r.Path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// DefaultConfig is used when no configuration is supplied.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    120,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		Rules:           DefaultRules(120),
	}
}

// FromConfig derives the limiter settings from the service configuration.
// Allow and deny lists come from RATE_LIMIT_WHITELIST and RATE_LIMIT_BLACKLIST.
func FromConfig(cfg *config.Config) *Config {
	if !cfg.RateLimit() {
		return &Config{Enabled: false}
	}
	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = config.Defaults().RateLimitPerMinute
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    perMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		Rules:           DefaultRules(perMinute),
	}
}

// DefaultRules returns the per-route rules. Workflow mutations get a quarter
// of the read budget; inbox updates get half.
func DefaultRules(perMinute int) []Rule {
	write := max(perMinute/4, 1)
	inbox := max(perMinute/2, 1)
	burst := max(write/3, 1)
	return []Rule{
		{Path: "/applications/", Method: "POST", Limit: write, Window: time.Minute, Burst: burst},
		{Path: "/applications/", Method: "PUT", Limit: write, Window: time.Minute, Burst: burst},
		{Path: "/notifications/", Method: "PUT", Limit: inbox, Window: time.Minute},
		{Path: "/feedback/statistics", Method: "GET", Limit: write, Window: time.Minute, Burst: burst},
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of client addresses.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
