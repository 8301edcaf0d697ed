package wallet

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
	"github.com/notfartdev/zdoge-sub004/internal/witness"
)

// UnshieldPrep is the result of PrepareUnshield, held until the withdrawal
// transaction confirms.
type UnshieldPrep struct {
	Proof         witness.Groth16Proof
	NullifierHash field.Scalar
	Root          field.Scalar
	Input         *note.Note
	ChangeOutput  *note.Note
}

// PrepareUnshield assembles an unshield proof withdrawing amount to a
// public EVM recipient, paying fee to relayer, and returning the
// remainder as a same-owner change note. If pin is nil, the input is
// chosen by the same smallest-covering-note policy as transfers.
func (s *Service) PrepareUnshield(ctx context.Context, recipient field.Scalar, amount, fee *big.Int, tok note.Token, relayer field.Scalar, pin *note.Note) (*UnshieldPrep, error) {
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

	var change witness.ChangeNote
	var changeCommitment field.Scalar
	var changeOut *note.Note
	if changeValue.Sign() == 0 {
		change = witness.ChangeNote{Value: big.NewInt(0)}
	} else {
		changeOut, err = note.New(changeValue, s.id.Address(), tok)
		if err != nil {
			return nil, err
		}
		change = witness.ChangeNote{Value: changeOut.Value, Secret: changeOut.Secret, Blinding: changeOut.Blinding}
		changeCommitment = changeOut.Commitment
	}

	proof, nh, err := witness.AssembleUnshield(ctx, s.prover, s.id, input, path, root, recipient, amount, change, changeCommitment, relayer, fee)
	if err != nil {
		return nil, err
	}

	return &UnshieldPrep{
		Proof:         proof,
		NullifierHash: nh,
		Root:          root,
		Input:         input,
		ChangeOutput:  changeOut,
	}, nil
}

// CompleteUnshield mirrors CompleteTransfer's post-confirmation contract
// for unshield operations.
func (s *Service) CompleteUnshield(ctx context.Context, prep *UnshieldPrep, changeLeafIndex uint64) (confirmed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spent, err := s.checkSpent(ctx, prep.NullifierHash)
	if err != nil {
		return false, err
	}
	if !spent {
		s.logger.Warn("unshield post-confirmation check: nullifier %s not yet spent, retaining input note", prep.NullifierHash.Hex())
		return false, nil
	}

	s.removeNoteByCommitment(prep.Input.Commitment)
	if prep.ChangeOutput != nil {
		idx := changeLeafIndex
		prep.ChangeOutput.LeafIndex = &idx
		s.notes = append(s.notes, prep.ChangeOutput)
	}
	if err := s.persistNotes(); err != nil {
		return false, err
	}
	s.logger.Audit("unshield_confirmed", map[string]interface{}{
		"nullifierHash": prep.NullifierHash.Hex(),
	})
	return true, nil
}
