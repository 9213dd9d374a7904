package health

import "context"

// HealthPinger is implemented by components that can verify their backing
// dependency with a single cheap round trip.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
