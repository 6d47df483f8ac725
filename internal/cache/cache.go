package cache

import (
	"context"
	"time"

	"sportpos/backend/internal/domain"
)

// HeldCartCache parks an in-progress cart for a terminal so it can be
// resumed later, surviving a backend restart when Redis backs it.
type HeldCartCache interface {
	Get(ctx context.Context, terminalID string) (*domain.HeldCart, bool, error)
	Set(ctx context.Context, terminalID string, cart *domain.HeldCart, ttl time.Duration) error
	Delete(ctx context.Context, terminalID string) error
}

type NoopHeldCartCache struct{}

func (NoopHeldCartCache) Get(_ context.Context, _ string) (*domain.HeldCart, bool, error) {
	return nil, false, nil
}

func (NoopHeldCartCache) Set(_ context.Context, _ string, _ *domain.HeldCart, _ time.Duration) error {
	return nil
}

func (NoopHeldCartCache) Delete(_ context.Context, _ string) error {
	return nil
}
