package options

import "time"

const (
	rejectionCacheDurationDefault = time.Minute
)

// RelayOptions are options for Relay
type RelayOptions struct {
	// How long a rejected transaction is remembered and dropped without verification.
	// Zero disables the rejection cache.
	RejectionCacheDuration time.Duration
}

// NewRelayOptions returns default initialized RelayOptions
func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		RejectionCacheDuration: rejectionCacheDurationDefault,
	}
}
