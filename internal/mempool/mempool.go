package mempool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/ledger"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/multiformats/go-multihash"
)

var memPoolPrefix = datastore.NewKey("/mempool")

// Entry is a pending transaction and the size of the encoding it was received as
type Entry struct {
	Transaction *transaction.Transaction
	SizeInBytes int
}

type poolEntry struct {
	id    multihash.Multihash
	entry *Entry
}

// MemPool is the set of pending transactions keyed by transaction ID
type MemPool struct {
	store datastore.Batching

	entries       map[string]*poolEntry
	serialNumbers map[string]string
	totalSize     int
	mu            sync.Mutex

	storeMu sync.Mutex
}

// NewMemPool creates an empty MemPool persisted to the given datastore
func NewMemPool(store datastore.Batching) *MemPool {
	return &MemPool{
		store:         store,
		entries:       make(map[string]*poolEntry),
		serialNumbers: make(map[string]string),
	}
}

// Insert adds the entry to the pool and returns its ID.
//
// A nil ID and nil error is returned when the transaction is already pending, or
// when one of its serial numbers is spent on the ledger or by another pending
// transaction.
func (m *MemPool) Insert(ctx context.Context, state ledger.State, entry *Entry) (multihash.Multihash, error) {
	id, err := entry.Transaction.ID()
	if err != nil {
		return nil, fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}

	for _, sn := range entry.Transaction.SerialNumbers {
		spent, err := state.HasSerialNumber(ctx, sn)
		if err != nil {
			return nil, fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
		}
		if spent {
			log.Debugf("Transaction conflicts with the ledger - %s", entry.Transaction)
			return nil, nil
		}
	}

	key := string(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		return nil, nil
	}

	for _, sn := range entry.Transaction.SerialNumbers {
		if _, ok := m.serialNumbers[string(sn)]; ok {
			log.Debugf("Transaction conflicts with a pending transaction - %s", entry.Transaction)
			return nil, nil
		}
	}

	m.entries[key] = &poolEntry{id: id, entry: entry}
	for _, sn := range entry.Transaction.SerialNumbers {
		m.serialNumbers[string(sn)] = key
	}
	m.totalSize += entry.SizeInBytes

	return id, nil
}

// Remove removes the transaction from the pool, returning true if it was present
func (m *MemPool) Remove(id multihash.Multihash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(string(id))
}

func (m *MemPool) removeLocked(key string) bool {
	pe, ok := m.entries[key]
	if !ok {
		return false
	}

	for _, sn := range pe.entry.Transaction.SerialNumbers {
		if m.serialNumbers[string(sn)] == key {
			delete(m.serialNumbers, string(sn))
		}
	}
	m.totalSize -= pe.entry.SizeInBytes
	delete(m.entries, key)

	return true
}

// Has returns true if the transaction is pending
func (m *MemPool) Has(id multihash.Multihash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[string(id)]
	return ok
}

// Entries returns a snapshot of the pending entries
func (m *MemPool) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*Entry, 0, len(m.entries))
	for _, pe := range m.entries {
		entries = append(entries, pe.entry)
	}

	return entries
}

// Len returns the number of pending transactions
func (m *MemPool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// TotalSize returns the sum of the encoded sizes of the pending transactions
func (m *MemPool) TotalSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.totalSize
}

func (m *MemPool) snapshot() []*poolEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*poolEntry, 0, len(m.entries))
	for _, pe := range m.entries {
		entries = append(entries, pe)
	}

	return entries
}

// Cleanse removes every transaction that has been committed or spends a committed serial number
func (m *MemPool) Cleanse(ctx context.Context, state ledger.State) error {
	stale := make([]string, 0)

	for _, pe := range m.snapshot() {
		committed, err := state.HasTransaction(ctx, pe.id)
		if err != nil {
			return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
		}

		if !committed {
			for _, sn := range pe.entry.Transaction.SerialNumbers {
				committed, err = state.HasSerialNumber(ctx, sn)
				if err != nil {
					return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
				}
				if committed {
					break
				}
			}
		}

		if committed {
			stale = append(stale, string(pe.id))
		}
	}

	if len(stale) == 0 {
		return nil
	}

	m.mu.Lock()
	removed := 0
	for _, key := range stale {
		if m.removeLocked(key) {
			removed++
		}
	}
	m.mu.Unlock()

	log.Debugf("Cleansed %d transactions from the memory pool", removed)
	return nil
}

func entryKey(id multihash.Multihash) datastore.Key {
	return memPoolPrefix.ChildString(id.HexString())
}

// Store rewrites the persisted pool to match the pending transactions
func (m *MemPool) Store(ctx context.Context) error {
	type record struct {
		key  datastore.Key
		data []byte
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	entries := m.snapshot()
	records := make([]record, 0, len(entries))
	current := make(map[datastore.Key]struct{}, len(entries))

	for _, pe := range entries {
		data, err := transaction.Marshal(pe.entry.Transaction)
		if err != nil {
			log.Warnf("Could not encode pending transaction - %s, %s", pe.entry.Transaction, err)
			continue
		}

		key := entryKey(pe.id)
		records = append(records, record{key: key, data: data})
		current[key] = struct{}{}
	}

	results, err := m.store.Query(ctx, query.Query{Prefix: memPoolPrefix.String(), KeysOnly: true})
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}
	existing, err := results.Rest()
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}

	batch, err := m.store.Batch(ctx)
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}

	for _, e := range existing {
		key := datastore.NewKey(e.Key)
		if _, ok := current[key]; !ok {
			if err := batch.Delete(ctx, key); err != nil {
				return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
			}
		}
	}

	for _, r := range records {
		if err := batch.Put(ctx, r.key, r.data); err != nil {
			return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}

	return nil
}

// Load inserts the persisted transactions into the pool and returns how many were restored.
//
// Records that no longer decode or conflict with the ledger are skipped.
func (m *MemPool) Load(ctx context.Context, state ledger.State) (int, error) {
	results, err := m.store.Query(ctx, query.Query{Prefix: memPoolPrefix.String()})
	if err != nil {
		return 0, fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}
	records, err := results.Rest()
	if err != nil {
		return 0, fmt.Errorf("%w, %s", p2perrors.ErrMemPool, err)
	}

	loaded := 0
	for _, r := range records {
		trx, err := transaction.Unmarshal(r.Value)
		if err != nil {
			log.Warnf("Skipping persisted transaction %s, %s", r.Key, err)
			continue
		}

		id, err := m.Insert(ctx, state, &Entry{Transaction: trx, SizeInBytes: len(r.Value)})
		if err != nil {
			return loaded, err
		}
		if id != nil {
			loaded++
		}
	}

	return loaded, nil
}
