package service

import (
	"context"
	"fmt"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
)

// Rate-limit scopes.
const (
	ScopeOTP          = "otp"
	ScopeTransaction  = "transaction"
	ScopePassword     = "password"
	ScopeAuthLogin    = "auth_login"
	ScopeAuthRegister = "auth_register"
	ScopeAccount      = "account"
)

// ScopedRateLimiter implements ports.RateLimiter with one fixed-window quota per scope.
type ScopedRateLimiter struct {
	store ports.RateLimitStore
	rules map[string]config.RateRule
}

// NewScopedRateLimiter creates a limiter applying rules over store.
func NewScopedRateLimiter(store ports.RateLimitStore, rules map[string]config.RateRule) *ScopedRateLimiter {
	return &ScopedRateLimiter{store: store, rules: rules}
}

// Allow counts one request by principal in scope. Scopes without a rule are unlimited.
func (l *ScopedRateLimiter) Allow(ctx context.Context, principal, scope string) (*ports.RateLimitDecision, error) {
	rule, ok := l.rules[scope]
	if !ok || rule.Limit <= 0 {
		return &ports.RateLimitDecision{Allowed: true}, nil
	}

	count, ttl, err := l.store.Hit(ctx, scope+":"+principal, rule.Window)
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", scope, err)
	}

	decision := &ports.RateLimitDecision{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: max(rule.Limit-count, 0),
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}
	return decision, nil
}
