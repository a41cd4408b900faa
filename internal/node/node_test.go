package node

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() datastore.Batching {
	return dssync.MutexWrap(datastore.NewMapDatastore())
}

func signedTxn(t *testing.T, sn byte) []byte {
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	trx := &transaction.Transaction{
		Network:       1,
		SerialNumbers: [][]byte{{sn}},
		Commitments:   [][]byte{{sn, sn}},
		ValueBalance:  1,
	}
	require.NoError(t, trx.Sign(key))

	data, err := transaction.Marshal(trx)
	require.NoError(t, err)
	return data
}

func startNode(t *testing.T, ctx context.Context, seed string, store datastore.Batching, config *options.Config) *TxRelayNode {
	n, err := NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/0", nil, seed, store, config)
	require.NoError(t, err)
	n.Start(ctx)
	t.Cleanup(func() { n.Close() })
	return n
}

func TestBasicNode(t *testing.T) {
	ctx := context.Background()

	// With an explicit seed
	bn, err := NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/8765", nil, "test1", newStore(), options.NewConfig())
	require.NoError(t, err)

	addr := bn.GetPeerAddress()
	assert.True(t, strings.HasPrefix(addr.String(), "/ip4/127.0.0.1/tcp/8765/p2p/Qm"), "Peer address returned by node is not correct")
	id := bn.Host.ID()
	assert.Equal(t, id, bn.Environment.LocalAddress())
	bn.Close()

	// The same seed gives the same identity
	bn, err = NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/8765", nil, "test1", newStore(), options.NewConfig())
	require.NoError(t, err)
	assert.Equal(t, id, bn.Host.ID())
	bn.Close()

	// With blank seed
	bn, err = NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/8765", nil, "", newStore(), options.NewConfig())
	require.NoError(t, err)
	assert.NotEqual(t, id, bn.Host.ID())
	bn.Close()

	// Give an invalid listen address
	bn, err = NewTxRelayNode(ctx, "---", nil, "", newStore(), options.NewConfig())
	if err == nil {
		bn.Close()
		t.Error("Starting a node with an invalid address should give an error, but it did not")
	}

	// Give an invalid peer address
	config := options.NewConfig()
	config.NodeOptions.InitialPeers = []string{"not a multiaddr"}
	bn, err = NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/0", nil, "", newStore(), config)
	if err == nil {
		bn.Close()
		t.Error("Creating a node with an invalid peer address should give an error, but it did not")
	}
}

func TestRelayBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startNode(t, ctx, "relay-a", newStore(), options.NewConfig())
	b := startNode(t, ctx, "relay-b", newStore(), options.NewConfig())

	_, err := b.ConnectToPeer(ctx, a.GetPeerAddress().String())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(a.ConnectedPeers(ctx)) == 1 && len(b.ConnectedPeers(ctx)) == 1
	}, time.Second*5, time.Millisecond*50)

	require.NoError(t, a.SubmitTransaction(ctx, signedTxn(t, 0x01)))
	assert.Equal(t, 1, a.MemPool.Len())

	assert.Eventually(t, func() bool {
		return b.MemPool.Len() == 1
	}, time.Second*5, time.Millisecond*50)

	// Submitting again is a duplicate
	assert.Error(t, a.SubmitTransaction(ctx, signedTxn(t, 0x01)))
}

func TestMemoryPoolSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startNode(t, ctx, "sync-a", newStore(), options.NewConfig())
	require.NoError(t, a.SubmitTransaction(ctx, signedTxn(t, 0x01)))
	require.NoError(t, a.SubmitTransaction(ctx, signedTxn(t, 0x02)))

	config := options.NewConfig()
	config.SyncManagerOptions.SyncInterval = time.Millisecond * 100
	config.NodeOptions.SyncPeers = []string{a.GetPeerAddress().String()}
	b := startNode(t, ctx, "sync-b", newStore(), config)

	assert.Eventually(t, func() bool {
		return b.MemPool.Len() == 2
	}, time.Second*10, time.Millisecond*50)
}

func TestCommitTransaction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := startNode(t, ctx, "commit", newStore(), options.NewConfig())

	data := signedTxn(t, 0x01)
	require.NoError(t, n.SubmitTransaction(ctx, data))
	require.Equal(t, 1, n.MemPool.Len())

	require.NoError(t, n.CommitTransaction(ctx, data))
	assert.Equal(t, 0, n.MemPool.Len())

	// A committed transaction is no longer valid
	assert.Error(t, n.SubmitTransaction(ctx, data))
	assert.Error(t, n.CommitTransaction(ctx, []byte{0xff}))
}

func TestRestoreMemoryPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newStore()

	n, err := NewTxRelayNode(ctx, "/ip4/127.0.0.1/tcp/0", nil, "restore", store, options.NewConfig())
	require.NoError(t, err)
	n.Start(ctx)
	require.NoError(t, n.SubmitTransaction(ctx, signedTxn(t, 0x01)))
	require.NoError(t, n.SubmitTransaction(ctx, signedTxn(t, 0x02)))
	require.NoError(t, n.Close())

	restored := startNode(t, ctx, "restore", store, options.NewConfig())
	assert.Equal(t, 2, restored.MemPool.Len())
}
