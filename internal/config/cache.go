package config

import (
    "time"
)

// CacheConfig defines settings for the response cache applied to the
// public by-username lookup. When Enabled is false or no Redis
// client could be constructed, caching is disabled and requests pass
// straight through. The cache applies to GET responses only; TTL is
// kept short because associations can be removed at any time and a
// stale positive is acceptable only briefly.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a
// CacheConfig. Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      getenv("CACHE_ENABLED", "true") == "true",
        TTL:          parseDur(getenv("CACHE_TTL", "15s")),
        Prefix:       getenv("CACHE_PREFIX", "usernames"),
        MaxBodyBytes: atoi(getenv("CACHE_MAX_BODY_BYTES", "1048576")),
    }
}
