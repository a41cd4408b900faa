package transaction

import (
	"fmt"

	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/multiformats/go-multihash"
)

// Transaction is a decoded ledger transaction
//
// SerialNumbers identify the records the transaction consumes and Commitments
// the records it creates. A negative ValueBalance mints value, which only a
// block producer's coinbase transaction may do.
type Transaction struct {
	Network       uint32
	SerialNumbers [][]byte
	Commitments   [][]byte
	ValueBalance  int64
	Memo          []byte
	PublicKey     []byte
	Signature     []byte
}

// IsCoinbase returns true if the transaction creates value rather than spending it
func (t *Transaction) IsCoinbase() bool {
	return t.ValueBalance < 0
}

// SigningBytes returns the encoding of every field except the signature
func (t *Transaction) SigningBytes() []byte {
	return appendFields(nil, t, false)
}

// ID returns the transaction identity, the sha2-256 multihash of its signing bytes
func (t *Transaction) ID() (multihash.Multihash, error) {
	id, err := multihash.Sum(t.SigningBytes(), multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("%w, %s", p2perrors.ErrSerialization, err)
	}

	return id, nil
}

// Sign sets the public key and signature of the transaction using the given key
func (t *Transaction) Sign(key crypto.PrivKey) error {
	pub, err := crypto.MarshalPublicKey(key.GetPublic())
	if err != nil {
		return err
	}

	t.PublicKey = pub
	sig, err := key.Sign(t.SigningBytes())
	if err != nil {
		return err
	}

	t.Signature = sig
	return nil
}

// VerifySignature checks the signature against the embedded public key
func (t *Transaction) VerifySignature() error {
	if len(t.PublicKey) == 0 || len(t.Signature) == 0 {
		return fmt.Errorf("%w, transaction is not signed", p2perrors.ErrInvalidSignature)
	}

	pub, err := crypto.UnmarshalPublicKey(t.PublicKey)
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrInvalidSignature, err)
	}

	ok, err := pub.Verify(t.SigningBytes(), t.Signature)
	if err != nil {
		return fmt.Errorf("%w, %s", p2perrors.ErrInvalidSignature, err)
	}

	if !ok {
		return p2perrors.ErrInvalidSignature
	}

	return nil
}

// String returns a short description of the transaction for logging
func (t *Transaction) String() string {
	id, err := t.ID()
	if err != nil {
		return "ID: <unknown>"
	}

	return fmt.Sprintf("ID: %s", id.HexString())
}
