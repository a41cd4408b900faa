package options

import "time"

const (
	peerConnectTimeoutDefault = time.Second * 30
	localRPCTimeoutDefault    = time.Second * 6
)

// NodeOptions is options that affect the whole node
type NodeOptions struct {
	// Set to true to run as a bootnode, which serves memory pool sync but never requests it
	EnableBootstrap bool

	// Peers to initially connect
	InitialPeers []string

	// Preferred peers to request the memory pool from
	SyncPeers []string

	// Timeout when dialing a peer
	PeerConnectTimeout time.Duration

	// Timeout for handling a request from the local node
	LocalRPCTimeout time.Duration
}

// NewNodeOptions creates a NodeOptions object which controls how the relay node works
func NewNodeOptions() *NodeOptions {
	return &NodeOptions{
		EnableBootstrap:    false,
		InitialPeers:       make([]string, 0),
		SyncPeers:          make([]string, 0),
		PeerConnectTimeout: peerConnectTimeoutDefault,
		LocalRPCTimeout:    localRPCTimeoutDefault,
	}
}
