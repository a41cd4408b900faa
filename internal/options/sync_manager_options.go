package options

import "time"

const (
	syncIntervalDefault = time.Second * 10
)

// SyncManagerOptions are options for SyncManager
type SyncManagerOptions struct {
	// How often the memory pool is requested from a sync peer
	SyncInterval time.Duration
}

// NewSyncManagerOptions returns default initialized SyncManagerOptions
func NewSyncManagerOptions() *SyncManagerOptions {
	return &SyncManagerOptions{
		SyncInterval: syncIntervalDefault,
	}
}
