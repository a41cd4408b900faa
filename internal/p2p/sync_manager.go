package p2p

import (
	"context"
	"math/rand"
	"time"

	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SyncTrigger requests the memory pool from a peer
type SyncTrigger interface {
	TriggerSync(syncPeer peer.ID)
}

// SyncManager periodically requests the memory pool from a connected peer
type SyncManager struct {
	trigger   SyncTrigger
	peers     PeerProvider
	syncPeers []peer.ID
	opts      options.SyncManagerOptions
}

// NewSyncManager creates a SyncManager. Connected sync peers are preferred over other peers.
func NewSyncManager(trigger SyncTrigger, peers PeerProvider, syncPeers []peer.ID, opts options.SyncManagerOptions) *SyncManager {
	return &SyncManager{
		trigger:   trigger,
		peers:     peers,
		syncPeers: syncPeers,
		opts:      opts,
	}
}

// SelectSyncPeer returns a connected sync peer, a random connected peer if no
// sync peer is connected, or an empty ID if there are no peers
func (s *SyncManager) SelectSyncPeer(ctx context.Context) peer.ID {
	peers := s.peers.Peers(ctx)

	for _, pid := range s.syncPeers {
		if _, ok := peers[pid]; ok {
			return pid
		}
	}

	if len(peers) == 0 {
		return ""
	}

	ids := make([]peer.ID, 0, len(peers))
	for pid := range peers {
		ids = append(ids, pid)
	}

	return ids[rand.Intn(len(ids))]
}

// Start syncing
func (s *SyncManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.opts.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.trigger.TriggerSync(s.SelectSyncPeer(ctx))
			case <-ctx.Done():
				return
			}
		}
	}()
}
