package ports

import "context"

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping returns nil when the dependency answers.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the health report ("postgresql", "redis").
	Name() string
}
