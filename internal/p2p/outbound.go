package p2p

import (
	"context"
	"errors"

	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Deliverer delivers a payload to a peer
type Deliverer interface {
	Deliver(ctx context.Context, peerID peer.ID, payload *rpc.Payload) error
}

// Outbound queues messages and delivers them to peers in the background
type Outbound struct {
	deliverer Deliverer
	queue     chan Message
	opts      options.OutboundOptions
}

// NewOutbound creates an Outbound
func NewOutbound(deliverer Deliverer, opts options.OutboundOptions) *Outbound {
	return &Outbound{
		deliverer: deliverer,
		queue:     make(chan Message, opts.QueueSize),
		opts:      opts,
	}
}

// SendRequest enqueues the message. The message is dropped if the queue is full.
func (o *Outbound) SendRequest(msg Message) {
	select {
	case o.queue <- msg:
	default:
		log.Warnf("%s, dropping %s message to peer %s", p2perrors.ErrOutboundQueueFull, msg.Payload.Type, msg.Destination)
	}
}

func (o *Outbound) deliver(ctx context.Context, msg Message) {
	deliverCtx, cancel := context.WithTimeout(ctx, o.opts.RemoteRPCTimeout)
	defer cancel()

	err := o.deliverer.Deliver(deliverCtx, msg.Destination, msg.Payload)
	if err != nil {
		if errors.Is(err, p2perrors.ErrPeerRPCTimeout) {
			log.Debugf("Timed out sending %s message to peer %s", msg.Payload.Type, msg.Destination)
		} else {
			log.Debugf("Error sending %s message to peer %s, %s", msg.Payload.Type, msg.Destination, err)
		}
	}
}

// Start the delivery workers
func (o *Outbound) Start(ctx context.Context) {
	for i := 0; i < o.opts.DeliveryJobs; i++ {
		go func() {
			for {
				select {
				case msg := <-o.queue:
					o.deliver(ctx, msg)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}
