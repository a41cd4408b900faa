package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
)

type testDeliverer struct {
	delivered map[peer.ID]int
	err       error
	block     chan struct{}
	mu        sync.Mutex
}

func newTestDeliverer() *testDeliverer {
	return &testDeliverer{delivered: make(map[peer.ID]int)}
}

func (d *testDeliverer) Deliver(ctx context.Context, peerID peer.ID, payload *rpc.Payload) error {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return p2perrors.ErrPeerRPCTimeout
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.delivered[peerID]++
	return d.err
}

func (d *testDeliverer) count(peerID peer.ID) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.delivered[peerID]
}

func TestOutboundDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliverer := newTestDeliverer()
	outbound := NewOutbound(deliverer, *options.NewOutboundOptions())
	outbound.Start(ctx)

	for i := 0; i < 5; i++ {
		outbound.SendRequest(Message{Destination: peerA, Payload: &rpc.Payload{Type: rpc.GetMemoryPoolPayload}})
	}
	outbound.SendRequest(Message{Destination: peerB, Payload: &rpc.Payload{Type: rpc.GetMemoryPoolPayload}})

	assert.Eventually(t, func() bool {
		return deliverer.count(peerA) == 5 && deliverer.count(peerB) == 1
	}, time.Second*2, time.Millisecond*10)
}

func TestOutboundNeverBlocks(t *testing.T) {
	opts := options.NewOutboundOptions()
	opts.QueueSize = 2
	outbound := NewOutbound(newTestDeliverer(), *opts)

	// Not started, so the queue fills and further sends are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			outbound.SendRequest(Message{Destination: peerA, Payload: &rpc.Payload{Type: rpc.TransactionPayload}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendRequest blocked on a full queue")
	}

	assert.Equal(t, 2, len(outbound.queue))
}

func TestOutboundDeliveryTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliverer := newTestDeliverer()
	deliverer.block = make(chan struct{})

	opts := options.NewOutboundOptions()
	opts.DeliveryJobs = 1
	opts.RemoteRPCTimeout = time.Millisecond * 50
	outbound := NewOutbound(deliverer, *opts)
	outbound.Start(ctx)

	outbound.SendRequest(Message{Destination: peerA, Payload: &rpc.Payload{Type: rpc.TransactionPayload}})
	outbound.SendRequest(Message{Destination: peerB, Payload: &rpc.Payload{Type: rpc.TransactionPayload}})

	// The worker moves on after each timeout
	assert.Eventually(t, func() bool {
		return len(outbound.queue) == 0
	}, time.Second*2, time.Millisecond*10)
}
