package p2p

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPeerProvider struct {
	peers PeerSet
}

func (p *testPeerProvider) Peers(ctx context.Context) PeerSet {
	return p.peers
}

func TestDispatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := newTestRelay(false)
	dispatcher := NewDispatcher(tr.relay, &testPeerProvider{peers: allPeers()}, *options.NewDispatcherOptions())
	dispatcher.Start(ctx)

	data := encodeTxn(t, 1, 0x01)
	require.NoError(t, dispatcher.HandlePayload(ctx, peerP, &rpc.Payload{Type: rpc.TransactionPayload, Transaction: data}))

	assert.Eventually(t, func() bool {
		return tr.pool.Len() == 1 && len(tr.sender.sent()) == 2
	}, time.Second*2, time.Millisecond*10)
	assert.ElementsMatch(t, []peer.ID{peerA, peerB}, tr.sender.destinations())

	require.NoError(t, dispatcher.HandlePayload(ctx, peerA, &rpc.Payload{Type: rpc.GetMemoryPoolPayload}))
	assert.Eventually(t, func() bool {
		sent := tr.sender.sent()
		return len(sent) == 3 && sent[2].Payload.Type == rpc.MemoryPoolPayload && sent[2].Destination == peerA
	}, time.Second*2, time.Millisecond*10)

	batch := [][]byte{encodeTxn(t, 2, 0x02), encodeTxn(t, 3, 0x03)}
	require.NoError(t, dispatcher.HandlePayload(ctx, peerB, &rpc.Payload{Type: rpc.MemoryPoolPayload, Transactions: batch}))
	assert.Eventually(t, func() bool {
		return tr.pool.Len() == 3
	}, time.Second*2, time.Millisecond*10)
}

func TestDispatcherUnknownPayload(t *testing.T) {
	tr := newTestRelay(false)
	dispatcher := NewDispatcher(tr.relay, &testPeerProvider{}, *options.NewDispatcherOptions())

	err := dispatcher.HandlePayload(context.Background(), peerA, &rpc.Payload{Type: rpc.PayloadType(42)})
	assert.True(t, errors.Is(err, p2perrors.ErrUnknownPayload))
}
