package p2p

import (
	"context"
	"errors"
	"fmt"

	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/mempool"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"
)

// Relay admits transactions into the memory pool, rebroadcasts new ones to
// peers, and exchanges the memory pool with peers
type Relay struct {
	env      Environment
	sender   Sender
	rejected *RejectionCache
}

// NewRelay creates a Relay
func NewRelay(env Environment, sender Sender, opts options.RelayOptions) *Relay {
	return &Relay{
		env:      env,
		sender:   sender,
		rejected: NewRejectionCache(opts.RejectionCacheDuration),
	}
}

// TriggerSync requests the memory pool from the sync peer. An empty peer ID means
// no sync peer is available. Bootnodes never request the memory pool.
func (r *Relay) TriggerSync(syncPeer peer.ID) {
	if r.env.IsBootnode() {
		return
	}

	if syncPeer == "" {
		log.Info("No sync peer available, skipping memory pool sync")
		return
	}

	log.Debugf("Requesting memory pool from peer %s", syncPeer)
	r.sender.SendRequest(Message{
		Destination: syncPeer,
		Payload:     &rpc.Payload{Type: rpc.GetMemoryPoolPayload},
	})
}

// PropagateTransaction sends the transaction to every peer except the sender and this node
func (r *Relay) PropagateTransaction(data []byte, sender peer.ID, peers PeerSet) {
	local := r.env.LocalAddress()

	for pid := range peers {
		if pid == sender || pid == local {
			continue
		}

		r.sender.SendRequest(Message{
			Destination: pid,
			Payload: &rpc.Payload{
				Type:        rpc.TransactionPayload,
				Transaction: append([]byte(nil), data...),
			},
		})
	}
}

// HandleTransaction admits a transaction received from a peer and propagates it
// if it is new. Rejected transactions are logged and dropped. An error is only
// returned if verification could not be completed.
func (r *Relay) HandleTransaction(ctx context.Context, source peer.ID, data []byte, peers PeerSet) error {
	err := r.admit(ctx, source, data, peers)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, p2perrors.ErrVerification):
		return err
	case errors.Is(err, p2perrors.ErrDeserialization),
		errors.Is(err, p2perrors.ErrDuplicateTransaction),
		errors.Is(err, p2perrors.ErrRecentlyRejected):
		log.Debugf("Dropped transaction from peer %s, %s", source, err)
	default:
		log.Warnf("Rejected transaction from peer %s, %s", source, err)
	}

	return nil
}

// SubmitTransaction admits a transaction created by the local node and propagates
// it to every peer. Unlike peer transactions, the reason for a rejection is returned.
func (r *Relay) SubmitTransaction(ctx context.Context, data []byte, peers PeerSet) error {
	return r.admit(ctx, r.env.LocalAddress(), data, peers)
}

func (r *Relay) admit(ctx context.Context, source peer.ID, data []byte, peers PeerSet) error {
	trx, err := transaction.Unmarshal(data)
	if err != nil {
		return err
	}

	// Rejections are keyed on the full encoding, signature included
	rawID, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrSerialization, err)
	}

	if r.rejected.Contains(rawID) {
		return fmt.Errorf("%w, %s", p2perrors.ErrRecentlyRejected, trx)
	}

	valid, err := r.env.Verifier().VerifyTransaction(ctx, trx, r.env.Ledger())
	if err != nil {
		if errors.Is(err, p2perrors.ErrVerification) {
			return err
		}
		return fmt.Errorf("%w, %s", p2perrors.ErrVerification, err)
	}

	if !valid {
		r.rejected.Add(rawID)
		return fmt.Errorf("%w, %s", p2perrors.ErrInvalidTransaction, trx)
	}

	if trx.IsCoinbase() {
		r.rejected.Add(rawID)
		return fmt.Errorf("%w, %s", p2perrors.ErrCoinbaseTransaction, trx)
	}

	inserted, err := r.env.MemPool().Insert(ctx, r.env.Ledger(), &mempool.Entry{
		Transaction: trx,
		SizeInBytes: len(data),
	})
	if err != nil {
		log.Warnf("Unable to insert transaction into memory pool - %s, %s", trx, err)
		return nil
	}

	if inserted == nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrDuplicateTransaction, trx)
	}

	log.Infof("Added transaction to memory pool - %s", trx)
	r.PropagateTransaction(data, source, peers)

	return nil
}

// HandleMemoryPoolRequest sends the pending transactions to the requesting peer.
// Nothing is sent if the memory pool is empty.
func (r *Relay) HandleMemoryPoolRequest(remote peer.ID) {
	entries := r.env.MemPool().Entries()
	transactions := make([][]byte, 0, len(entries))

	for _, entry := range entries {
		data, err := transaction.Marshal(entry.Transaction)
		if err != nil {
			log.Warnf("Unable to encode pending transaction - %s, %s", entry.Transaction, err)
			continue
		}
		transactions = append(transactions, data)
	}

	if len(transactions) == 0 {
		log.Debugf("Memory pool is empty, not responding to peer %s", remote)
		return
	}

	log.Debugf("Sending %d pending transactions to peer %s", len(transactions), remote)
	r.sender.SendRequest(Message{
		Destination: remote,
		Payload: &rpc.Payload{
			Type:         rpc.MemoryPoolPayload,
			Transactions: transactions,
		},
	})
}

// HandleMemoryPool inserts the transactions of a peer's memory pool, then cleanses
// and stores the memory pool. The transactions are not verified or propagated.
func (r *Relay) HandleMemoryPool(ctx context.Context, transactions [][]byte) {
	pool := r.env.MemPool()
	state := r.env.Ledger()
	added := 0

	for _, data := range transactions {
		trx, err := transaction.Unmarshal(data)
		if err != nil {
			log.Debugf("Skipping malformed memory pool transaction, %s", err)
			continue
		}

		if trx.IsCoinbase() {
			log.Warnf("Skipping memory pool transaction - %s, %s", trx, p2perrors.ErrCoinbaseTransaction)
			continue
		}

		id, err := pool.Insert(ctx, state, &mempool.Entry{
			Transaction: trx,
			SizeInBytes: len(data),
		})
		if err != nil {
			log.Warnf("Unable to insert transaction into memory pool - %s, %s", trx, err)
			continue
		}

		if id != nil {
			added++
		}
	}

	if err := pool.Cleanse(ctx, state); err != nil {
		log.Warnf("Unable to cleanse memory pool, %s", err)
	}

	if err := pool.Store(ctx); err != nil {
		log.Warnf("Unable to store memory pool, %s", err)
	}

	log.Infof("Received memory pool, added %d of %d transactions", added, len(transactions))
}
