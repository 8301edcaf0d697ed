package wallet

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/memo"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
	"github.com/notfartdev/zdoge-sub004/internal/witness"
)

// TransferPrep is the result of PrepareTransfer: a proof ready for
// submission plus the outputs it binds, kept so CompleteTransfer can
// finalize the wallet's note set once the transaction confirms.
type TransferPrep struct {
	Proof         witness.Groth16Proof
	NullifierHash field.Scalar
	Root          field.Scalar
	Input         *note.Note
	SendOutput    *note.Note
	SendMemo      memo.Memo
	ChangeOutput  *note.Note
}

// PrepareTransfer assembles a transfer proof sending amount to recipient,
// paying fee to relayer, and returning the remainder to the wallet's own
// address as a change note. If pin is nil, the input note is chosen by the
// auto-select policy: the smallest confirmed note whose value covers
// amount+fee (§4.7).
func (s *Service) PrepareTransfer(ctx context.Context, recipient field.Scalar, amount, fee *big.Int, tok note.Token, relayer field.Scalar, pin *note.Note) (*TransferPrep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := pin
	if input == nil {
		minValue := new(big.Int).Add(amount, fee)
		var err error
		input, err = s.selectSpendable(tok, minValue)
		if err != nil {
			return nil, err
		}
	}

	nh, err := input.NullifierHash(s.id.SpendingKey())
	if err != nil {
		return nil, err
	}
	spent, err := s.checkSpent(ctx, nh)
	if err != nil {
		return nil, err
	}
	if spent {
		s.removeNoteByCommitment(input.Commitment)
		_ = s.persistNotes()
		return nil, walleterr.New(walleterr.NoteSpent, "selected input note is already spent on-chain")
	}

	path, root, err := s.pathFor(ctx, *input.LeafIndex)
	if err != nil {
		return nil, err
	}

	changeValue := new(big.Int).Sub(input.Value, amount)
	changeValue.Sub(changeValue, fee)
	if changeValue.Sign() < 0 {
		return nil, walleterr.New(walleterr.InsufficientNote, "input note does not cover amount plus fee")
	}

	sendOut, err := note.New(amount, recipient, tok)
	if err != nil {
		return nil, err
	}
	changeOut, err := note.New(changeValue, s.id.Address(), tok)
	if err != nil {
		return nil, err
	}

	proof, nh, err := witness.AssembleTransfer(ctx, s.prover, s.id, input, path, root, sendOut, changeOut, relayer, fee)
	if err != nil {
		return nil, err
	}

	m, err := memo.Encrypt(recipient, memo.Payload{
		Amount:       sendOut.Value,
		Secret:       sendOut.Secret,
		Blinding:     sendOut.Blinding,
		TokenSymbol:  tok.Symbol,
		TokenAddress: tok.Address,
		Decimals:     tok.Decimals,
	})
	if err != nil {
		return nil, err
	}

	return &TransferPrep{
		Proof:         proof,
		NullifierHash: nh,
		Root:          root,
		Input:         input,
		SendOutput:    sendOut,
		SendMemo:      m,
		ChangeOutput:  changeOut,
	}, nil
}

// CompleteTransfer finalizes a confirmed transfer: it verifies on-chain
// that prep's nullifier is now spent before removing the input note, and
// assigns changeLeafIndex to the change output before adding it to the
// note set. confirmed reports whether the on-chain state had caught up;
// when false, err is nil and the caller should retry later — the service
// "does not guess" (§4.7).
func (s *Service) CompleteTransfer(ctx context.Context, prep *TransferPrep, changeLeafIndex uint64) (confirmed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spent, err := s.checkSpent(ctx, prep.NullifierHash)
	if err != nil {
		return false, err
	}
	if !spent {
		s.logger.Warn("transfer post-confirmation check: nullifier %s not yet spent, retaining input note", prep.NullifierHash.Hex())
		return false, nil
	}

	s.removeNoteByCommitment(prep.Input.Commitment)
	if prep.ChangeOutput.Value.Sign() > 0 {
		idx := changeLeafIndex
		prep.ChangeOutput.LeafIndex = &idx
		s.notes = append(s.notes, prep.ChangeOutput)
	}
	if err := s.persistNotes(); err != nil {
		return false, err
	}
	s.logger.Audit("transfer_confirmed", map[string]interface{}{
		"nullifierHash": prep.NullifierHash.Hex(),
		"sendCommitment": prep.SendOutput.Commitment.Hex(),
	})
	return true, nil
}
