package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/multiformats/go-multihash"
)

var (
	serialNumberPrefix = datastore.NewKey("/ledger/sn")
	transactionPrefix  = datastore.NewKey("/ledger/tx")
)

// State is a read only view of committed ledger state
type State interface {
	HasSerialNumber(ctx context.Context, sn []byte) (bool, error)
	HasTransaction(ctx context.Context, id multihash.Multihash) (bool, error)
}

// Ledger records the serial numbers and transactions committed in blocks
type Ledger struct {
	store datastore.Batching
	mu    sync.RWMutex
}

// NewLedger creates a Ledger backed by the given datastore
func NewLedger(store datastore.Batching) *Ledger {
	return &Ledger{store: store}
}

func serialNumberKey(sn []byte) datastore.Key {
	return serialNumberPrefix.ChildString(hex.EncodeToString(sn))
}

func transactionKey(id multihash.Multihash) datastore.Key {
	return transactionPrefix.ChildString(id.HexString())
}

// HasSerialNumber returns true if a committed transaction consumed the serial number
func (l *Ledger) HasSerialNumber(ctx context.Context, sn []byte) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	has, err := l.store.Has(ctx, serialNumberKey(sn))
	if err != nil {
		return false, fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
	}

	return has, nil
}

// HasTransaction returns true if the transaction has been committed
func (l *Ledger) HasTransaction(ctx context.Context, id multihash.Multihash) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	has, err := l.store.Has(ctx, transactionKey(id))
	if err != nil {
		return false, fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
	}

	return has, nil
}

// Apply records a committed transaction and its serial numbers atomically
func (l *Ledger) Apply(ctx context.Context, trx *transaction.Transaction) error {
	id, err := trx.ID()
	if err != nil {
		return err
	}

	data, err := transaction.Marshal(trx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	batch, err := l.store.Batch(ctx)
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
	}

	for _, sn := range trx.SerialNumbers {
		if err := batch.Put(ctx, serialNumberKey(sn), id); err != nil {
			return fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
		}
	}

	if err := batch.Put(ctx, transactionKey(id), data); err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrLedger, err)
	}

	log.Debugf("Ledger applied transaction - %s", trx)
	return nil
}
