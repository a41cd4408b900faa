package p2p

import (
	"context"
	"sync"

	"github.com/koinos/koinos-txrelay/internal/ledger"
	"github.com/koinos/koinos-txrelay/internal/mempool"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"
)

// PeerInfo is what is known about a connected peer
type PeerInfo struct {
	Addrs []multiaddr.Multiaddr
}

// PeerSet is the set of peers a message may be sent to
type PeerSet map[peer.ID]PeerInfo

// PeerProvider provides the current set of connected peers
type PeerProvider interface {
	Peers(ctx context.Context) PeerSet
}

// Message is a payload directed at a single peer
type Message struct {
	Destination peer.ID
	Payload     *rpc.Payload
}

// Sender enqueues messages for delivery. SendRequest must not block.
type Sender interface {
	SendRequest(msg Message)
}

// MemPool is the pending transaction pool used by the relay
type MemPool interface {
	Insert(ctx context.Context, state ledger.State, entry *mempool.Entry) (multihash.Multihash, error)
	Cleanse(ctx context.Context, state ledger.State) error
	Store(ctx context.Context) error
	Entries() []*mempool.Entry
}

// Verifier checks transactions against consensus rules
type Verifier interface {
	VerifyTransaction(ctx context.Context, trx *transaction.Transaction, state ledger.State) (bool, error)
}

// Environment is the node state the relay operates on
type Environment interface {
	IsBootnode() bool
	LocalAddress() peer.ID
	MemPool() MemPool
	Ledger() ledger.State
	Verifier() Verifier
}

// NodeEnvironment is the Environment of a running relay node
type NodeEnvironment struct {
	bootnode     bool
	localAddress peer.ID
	memPool      MemPool
	ledger       ledger.State
	verifier     Verifier
	mu           sync.RWMutex
}

// NewNodeEnvironment creates a NodeEnvironment with no local address
func NewNodeEnvironment(bootnode bool, memPool MemPool, state ledger.State, verifier Verifier) *NodeEnvironment {
	return &NodeEnvironment{
		bootnode: bootnode,
		memPool:  memPool,
		ledger:   state,
		verifier: verifier,
	}
}

func (e *NodeEnvironment) IsBootnode() bool {
	return e.bootnode
}

// LocalAddress returns the node's own peer ID, or an empty ID if it is not yet known
func (e *NodeEnvironment) LocalAddress() peer.ID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.localAddress
}

func (e *NodeEnvironment) SetLocalAddress(id peer.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.localAddress = id
}

func (e *NodeEnvironment) MemPool() MemPool {
	return e.memPool
}

func (e *NodeEnvironment) Ledger() ledger.State {
	return e.ledger
}

func (e *NodeEnvironment) Verifier() Verifier {
	return e.verifier
}
