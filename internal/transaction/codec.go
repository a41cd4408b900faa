package transaction

import (
	"fmt"

	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	networkField      protowire.Number = 1
	serialNumberField protowire.Number = 2
	commitmentField   protowire.Number = 3
	valueBalanceField protowire.Number = 4
	memoField         protowire.Number = 5
	publicKeyField    protowire.Number = 6
	signatureField    protowire.Number = 7
)

// Marshal encodes the transaction in protobuf wire format
func Marshal(t *Transaction) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w, nil transaction", p2perrors.ErrSerialization)
	}

	return appendFields(nil, t, true), nil
}

func appendFields(b []byte, t *Transaction, withSignature bool) []byte {
	b = protowire.AppendTag(b, networkField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Network))

	for _, sn := range t.SerialNumbers {
		b = protowire.AppendTag(b, serialNumberField, protowire.BytesType)
		b = protowire.AppendBytes(b, sn)
	}

	for _, cm := range t.Commitments {
		b = protowire.AppendTag(b, commitmentField, protowire.BytesType)
		b = protowire.AppendBytes(b, cm)
	}

	b = protowire.AppendTag(b, valueBalanceField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(t.ValueBalance))

	if len(t.Memo) > 0 {
		b = protowire.AppendTag(b, memoField, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Memo)
	}

	if len(t.PublicKey) > 0 {
		b = protowire.AppendTag(b, publicKeyField, protowire.BytesType)
		b = protowire.AppendBytes(b, t.PublicKey)
	}

	if withSignature && len(t.Signature) > 0 {
		b = protowire.AppendTag(b, signatureField, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Signature)
	}

	return b
}

// Unmarshal decodes a transaction from protobuf wire format
//
// Unknown fields are skipped. Byte fields are copied so the result does not
// alias the input buffer.
func Unmarshal(data []byte) (*Transaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w, empty transaction", p2perrors.ErrDeserialization)
	}

	t := &Transaction{}
	b := data

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, deserializationError(n)
		}
		b = b[n:]

		switch num {
		case networkField, valueBalanceField:
			if typ != protowire.VarintType {
				return nil, wireTypeError(num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, deserializationError(n)
			}
			b = b[n:]

			if num == networkField {
				t.Network = uint32(v)
			} else {
				t.ValueBalance = protowire.DecodeZigZag(v)
			}

		case serialNumberField, commitmentField, memoField, publicKeyField, signatureField:
			if typ != protowire.BytesType {
				return nil, wireTypeError(num, typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, deserializationError(n)
			}
			b = b[n:]
			v = append([]byte{}, v...)

			switch num {
			case serialNumberField:
				t.SerialNumbers = append(t.SerialNumbers, v)
			case commitmentField:
				t.Commitments = append(t.Commitments, v)
			case memoField:
				t.Memo = v
			case publicKeyField:
				t.PublicKey = v
			case signatureField:
				t.Signature = v
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, deserializationError(n)
			}
			b = b[n:]
		}
	}

	return t, nil
}

func deserializationError(n int) error {
	return fmt.Errorf("%w, %s", p2perrors.ErrDeserialization, protowire.ParseError(n))
}

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w, field %d has unexpected wire type %d", p2perrors.ErrDeserialization, num, typ)
}
