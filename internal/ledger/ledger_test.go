package ledger

import (
	"context"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/koinos/koinos-txrelay/internal/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(dssync.MutexWrap(datastore.NewMapDatastore()))

	trx := &transaction.Transaction{
		Network:       1,
		SerialNumbers: [][]byte{{0x01}, {0x02}},
		ValueBalance:  3,
	}
	id, err := trx.ID()
	require.NoError(t, err)

	has, err := l.HasTransaction(ctx, id)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = l.HasSerialNumber(ctx, []byte{0x01})
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, l.Apply(ctx, trx))

	has, err = l.HasTransaction(ctx, id)
	require.NoError(t, err)
	assert.True(t, has)

	for _, sn := range trx.SerialNumbers {
		has, err = l.HasSerialNumber(ctx, sn)
		require.NoError(t, err)
		assert.True(t, has)
	}

	has, err = l.HasSerialNumber(ctx, []byte{0x03})
	require.NoError(t, err)
	assert.False(t, has)
}
