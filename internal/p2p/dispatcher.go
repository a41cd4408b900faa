package p2p

import (
	"context"
	"fmt"

	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/libp2p/go-libp2p/core/peer"
)

type inboundMessage struct {
	sender  peer.ID
	payload *rpc.Payload
}

// Dispatcher hands payloads received from peers to the relay
type Dispatcher struct {
	relay *Relay
	peers PeerProvider
	queue chan inboundMessage
	opts  options.DispatcherOptions
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(relay *Relay, peers PeerProvider, opts options.DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		relay: relay,
		peers: peers,
		queue: make(chan inboundMessage, opts.QueueSize),
		opts:  opts,
	}
}

// HandlePayload queues a payload received from a peer
func (d *Dispatcher) HandlePayload(ctx context.Context, sender peer.ID, payload *rpc.Payload) error {
	switch payload.Type {
	case rpc.GetMemoryPoolPayload, rpc.TransactionPayload, rpc.MemoryPoolPayload:
	default:
		return fmt.Errorf("%w, %d", p2perrors.ErrUnknownPayload, payload.Type)
	}

	select {
	case d.queue <- inboundMessage{sender: sender, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg inboundMessage) {
	handlerCtx, cancel := context.WithTimeout(ctx, d.opts.HandlerTimeout)
	defer cancel()

	switch msg.payload.Type {
	case rpc.GetMemoryPoolPayload:
		d.relay.HandleMemoryPoolRequest(msg.sender)

	case rpc.TransactionPayload:
		err := d.relay.HandleTransaction(handlerCtx, msg.sender, msg.payload.Transaction, d.peers.Peers(handlerCtx))
		if err != nil {
			log.Warnf("Error handling transaction from peer %s, %s", msg.sender, err)
		}

	case rpc.MemoryPoolPayload:
		d.relay.HandleMemoryPool(handlerCtx, msg.payload.Transactions)
	}
}

// Start the handler workers
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.opts.HandlerJobs; i++ {
		go func() {
			for {
				select {
				case msg := <-d.queue:
					d.handle(ctx, msg)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}
