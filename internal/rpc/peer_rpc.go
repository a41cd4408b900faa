package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	gorpc "github.com/libp2p/go-libp2p-gorpc"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerRPC delivers payloads to peers via libp2p's gorpc
type PeerRPC struct {
	client *gorpc.Client
}

// NewPeerRPC creates a PeerRPC
func NewPeerRPC(client *gorpc.Client) *PeerRPC {
	return &PeerRPC{client: client}
}

// Deliver rpc call
func (p *PeerRPC) Deliver(ctx context.Context, peerID peer.ID, payload *Payload) error {
	rpcResp := &DeliverResponse{}
	err := p.client.CallContext(ctx, peerID, "RelayService", "Deliver", payload, rpcResp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w, %s", p2perrors.ErrPeerRPCTimeout, err)
		}
		return fmt.Errorf("%w, %s", p2perrors.ErrPeerRPC, err)
	}

	return nil
}
