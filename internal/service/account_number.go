package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/rs/zerolog"
)

// ClaimFunc tries to take ownership of number, typically by inserting the
// account row. It returns domain.ErrAccountNumberTaken when the number is in use.
type ClaimFunc func(ctx context.Context, number string) error

// AccountNumberAllocator draws account numbers from a fixed decimal range and
// relies on the store's uniqueness constraint instead of a pre-check read.
type AccountNumberAllocator struct {
	min         int64
	max         int64
	maxAttempts int
	draw        func(n int64) int64
	log         zerolog.Logger
}

// NewAccountNumberAllocator creates an allocator for cfg's range.
func NewAccountNumberAllocator(cfg config.LedgerConfig, log zerolog.Logger) *AccountNumberAllocator {
	return &AccountNumberAllocator{
		min:         cfg.AccountNumberMin,
		max:         cfg.AccountNumberMax,
		maxAttempts: cfg.MaxAllocationAttempts,
		draw:        rand.Int64N,
		log:         log,
	}
}

// Allocate draws candidates and hands each to claim until one sticks. It gives
// up with ACC_001 after maxAttempts collisions.
func (a *AccountNumberAllocator) Allocate(ctx context.Context, claim ClaimFunc) (string, error) {
	if a.max < a.min || a.maxAttempts < 1 {
		return "", apperror.InternalError(fmt.Errorf("invalid allocator range [%d, %d] or attempts %d", a.min, a.max, a.maxAttempts))
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		number := strconv.FormatInt(a.min+a.draw(a.max-a.min+1), 10)
		err := claim(ctx, number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, domain.ErrAccountNumberTaken) {
			return "", err
		}
		a.log.Debug().Int("attempt", attempt).Msg("account number collision, redrawing")
	}

	a.log.Warn().Int("attempts", a.maxAttempts).Msg("account number space exhausted")
	return "", apperror.ErrExhaustedKeyspace()
}
