package rpc

import (
	"context"

	gorpc "github.com/libp2p/go-libp2p-gorpc"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerRPCID Identifies the peer rpc service
const PeerRPCID = "/koinos/txrelay/1.0.0"

// PayloadType identifies the kind of message exchanged between relay peers
type PayloadType uint8

const (
	// GetMemoryPoolPayload requests the receiver's pending transactions
	GetMemoryPoolPayload PayloadType = iota

	// TransactionPayload carries a single encoded transaction
	TransactionPayload

	// MemoryPoolPayload carries a batch of encoded pending transactions
	MemoryPoolPayload
)

func (t PayloadType) String() string {
	switch t {
	case GetMemoryPoolPayload:
		return "GetMemoryPool"
	case TransactionPayload:
		return "Transaction"
	case MemoryPoolPayload:
		return "MemoryPool"
	default:
		return "Unknown"
	}
}

// Payload is a message between relay peers
type Payload struct {
	Type         PayloadType
	Transaction  []byte
	Transactions [][]byte
}

type DeliverResponse struct {
}

// PayloadHandler handles payloads delivered by peers
type PayloadHandler interface {
	HandlePayload(ctx context.Context, sender peer.ID, payload *Payload) error
}

// RelayService receives payloads from peers
type RelayService struct {
	handler PayloadHandler
}

func NewRelayService(handler PayloadHandler) *RelayService {
	return &RelayService{
		handler: handler,
	}
}

func (s *RelayService) Deliver(ctx context.Context, request *Payload, response *DeliverResponse) error {
	sender, err := gorpc.GetRequestSender(ctx)
	if err != nil {
		return err
	}

	return s.handler.HandlePayload(ctx, sender, request)
}
