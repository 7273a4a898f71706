// Package cache remembers accepted one-time codes so each can be used once.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

func key(id entity.Identity, code string) string {
	return "otp:used:" + string(id) + ":" + code
}

// Redis claims codes with SET NX so every replica sees the same claims.
type Redis struct {
	client *redis.Client
	ins    instrument.Instrumentation
}

func NewRedis(client *redis.Client, ins instrument.Instrumentation) *Redis {
	return &Redis{client: client, ins: ins}
}

// ClaimCode reports whether this is the first use of code for id within ttl.
func (r *Redis) ClaimCode(ctx context.Context, id entity.Identity, code string, ttl time.Duration) (bool, error) {
	ctx, span := r.ins.Tracer("identity.outbound.cache").Start(ctx, "ClaimCode")
	defer span.End()

	ok, err := r.client.SetNX(ctx, key(id, code), 1, ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("cache: claim code: %w", err)
	}

	return ok, nil
}

// Memory is the single-process fallback used when redis is disabled.
type Memory struct {
	clock clock.Clocker

	mu     sync.Mutex
	claims map[string]time.Time
}

func NewMemory(clk clock.Clocker) *Memory {
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{clock: clk, claims: map[string]time.Time{}}
}

func (m *Memory) ClaimCode(ctx context.Context, id entity.Identity, code string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := m.clock.Now()
	k := key(id, code)

	m.mu.Lock()
	defer m.mu.Unlock()

	for ck, exp := range m.claims {
		if !now.Before(exp) {
			delete(m.claims, ck)
		}
	}

	if _, used := m.claims[k]; used {
		return false, nil
	}
	m.claims[k] = now.Add(ttl)

	return true, nil
}
