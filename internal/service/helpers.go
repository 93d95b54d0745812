package service

import (
	"context"
	"math"
	"strings"
	"time"
)

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}

func clampScore(value float64) int {
	return int(math.Round(math.Max(0, math.Min(100, value))))
}

// daysSince returns whole days elapsed between t and now, never negative.
func daysSince(t, now time.Time) int {
	d := now.Sub(t)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

func defaultNow() time.Time {
	return time.Now().UTC()
}

// Transactor commits the writes made by fn together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// inline runs fn without a transaction; used when no database is wired.
type inline struct{}

func (inline) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
