package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

const (
	pairingKeyPrefix = "session:pairing:"
	pairingTTL       = 5 * time.Minute
)

// PairingCache stores the last pairing payload per tenant so the admin UI can
// poll it. Payloads live in memory and, when Redis is configured, are
// mirrored there with a TTL so other processes can read them too.
type PairingCache struct {
	redis  *redis.Client
	logger *logging.Logger

	mu       sync.RWMutex
	payloads map[string]string
}

// NewPairingCache creates a cache. rdb may be nil for memory-only operation.
func NewPairingCache(rdb *redis.Client, logger *logging.Logger) *PairingCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &PairingCache{
		redis:    rdb,
		logger:   logger,
		payloads: make(map[string]string),
	}
}

// Set stores the payload for a tenant.
func (c *PairingCache) Set(ctx context.Context, tenantID, payload string) {
	c.mu.Lock()
	c.payloads[tenantID] = payload
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Set(ctx, pairingKeyPrefix+tenantID, payload, pairingTTL).Err(); err != nil {
			c.logger.Warn("pairing payload redis write failed",
				"tenant_id", tenantID, "error", err.Error())
		}
	}
}

// Get returns the tenant's pairing payload, or "" when none is pending.
func (c *PairingCache) Get(ctx context.Context, tenantID string) string {
	c.mu.RLock()
	payload, ok := c.payloads[tenantID]
	c.mu.RUnlock()
	if ok && payload != "" {
		return payload
	}

	if c.redis != nil {
		value, err := c.redis.Get(ctx, pairingKeyPrefix+tenantID).Result()
		if err == nil {
			return value
		}
		if err != redis.Nil {
			c.logger.Warn("pairing payload redis read failed",
				"tenant_id", tenantID, "error", err.Error())
		}
	}
	return ""
}

// Clear removes the tenant's pairing payload.
func (c *PairingCache) Clear(ctx context.Context, tenantID string) {
	c.mu.Lock()
	delete(c.payloads, tenantID)
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Del(ctx, pairingKeyPrefix+tenantID).Err(); err != nil {
			c.logger.Warn("pairing payload redis delete failed",
				"tenant_id", tenantID, "error", err.Error())
		}
	}
}
