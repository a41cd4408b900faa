package consensus

import (
	"context"
	"errors"
	"fmt"

	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/ledger"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/koinos/koinos-txrelay/internal/transaction"
)

// Verifier checks transactions against the consensus parameters and ledger state
type Verifier struct {
	opts options.ConsensusOptions
}

// NewVerifier creates a Verifier
func NewVerifier(opts options.ConsensusOptions) *Verifier {
	return &Verifier{opts: opts}
}

// VerifyTransaction returns whether the transaction is currently valid.
//
// An invalid transaction returns false and a nil error. An error is only returned
// when the ledger state could not be read.
func (v *Verifier) VerifyTransaction(ctx context.Context, trx *transaction.Transaction, state ledger.State) (bool, error) {
	if err := v.checkStructure(trx); err != nil {
		log.Debugf("Transaction failed structural checks - %s, %s", trx, err)
		return false, nil
	}

	id, err := trx.ID()
	if err != nil {
		return false, err
	}

	committed, err := state.HasTransaction(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w, %s", p2perrors.ErrVerification, err)
	}
	if committed {
		log.Debugf("Transaction is already committed - %s", trx)
		return false, nil
	}

	for _, sn := range trx.SerialNumbers {
		spent, err := state.HasSerialNumber(ctx, sn)
		if err != nil {
			return false, fmt.Errorf("%w, %s", p2perrors.ErrVerification, err)
		}
		if spent {
			log.Debugf("Transaction spends a committed serial number - %s", trx)
			return false, nil
		}
	}

	if err := trx.VerifySignature(); err != nil {
		if errors.Is(err, p2perrors.ErrInvalidSignature) {
			log.Debugf("Transaction signature rejected - %s, %s", trx, err)
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (v *Verifier) checkStructure(trx *transaction.Transaction) error {
	if trx.Network != v.opts.NetworkID {
		return fmt.Errorf("%w, network %d does not match %d", p2perrors.ErrInvalidTransaction, trx.Network, v.opts.NetworkID)
	}

	data, err := transaction.Marshal(trx)
	if err != nil {
		return err
	}
	if len(data) > v.opts.MaxTransactionSize {
		return fmt.Errorf("%w, size %d exceeds %d", p2perrors.ErrInvalidTransaction, len(data), v.opts.MaxTransactionSize)
	}

	if len(trx.SerialNumbers) == 0 {
		return fmt.Errorf("%w, no serial numbers", p2perrors.ErrInvalidTransaction)
	}
	if len(trx.SerialNumbers) > v.opts.MaxSerialNumbers {
		return fmt.Errorf("%w, too many serial numbers", p2perrors.ErrInvalidTransaction)
	}
	if len(trx.Commitments) > v.opts.MaxCommitments {
		return fmt.Errorf("%w, too many commitments", p2perrors.ErrInvalidTransaction)
	}
	if len(trx.Memo) > v.opts.MaxMemoSize {
		return fmt.Errorf("%w, memo exceeds %d bytes", p2perrors.ErrInvalidTransaction, v.opts.MaxMemoSize)
	}

	seen := make(map[string]struct{}, len(trx.SerialNumbers))
	for _, sn := range trx.SerialNumbers {
		if _, ok := seen[string(sn)]; ok {
			return fmt.Errorf("%w, duplicate serial number", p2perrors.ErrInvalidTransaction)
		}
		seen[string(sn)] = struct{}{}
	}

	return nil
}
