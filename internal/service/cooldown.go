package service

import (
	"context"
	"time"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

// CooldownGate throttles write actions per user and action class.
type CooldownGate struct {
	store    repository.CooldownStore
	interval time.Duration
	now      Clock
}

func NewCooldownGate(store repository.CooldownStore, interval time.Duration, now Clock) *CooldownGate {
	if now == nil {
		now = systemClock
	}
	return &CooldownGate{store: store, interval: interval, now: now}
}

// Check stamps the class for userID or returns a Cooldown error carrying
// the time left until the next allowed attempt.
func (g *CooldownGate) Check(ctx context.Context, userID string, class models.ActionClass) error {
	if g.interval <= 0 {
		return nil
	}

	now := g.now()
	ok, last, err := g.store.Stamp(ctx, userID, class, now, g.interval)
	if err != nil {
		return apperr.Internal("cooldown check", err)
	}
	if ok {
		return nil
	}

	remaining := last.Add(g.interval).Sub(now)
	if remaining < time.Second {
		remaining = time.Second
	}
	return apperr.Cooldown(remaining)
}
