package wallet

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
	"github.com/notfartdev/zdoge-sub004/internal/witness"
)

// QuoteFunc quotes the output-token amount for a given input-token
// amount. The exchange-rate math itself runs on-chain (§4.5); the
// wallet only needs a quote to build the matching output commitment
// before the prover runs, so the host supplies one (e.g. backed by the
// same view the contract uses).
type QuoteFunc func(swapAmount *big.Int) *big.Int

// SwapLegPrep is one per-note leg of a (possibly split) swap.
type SwapLegPrep struct {
	Proof         witness.Groth16Proof
	NullifierHash field.Scalar
	Root          field.Scalar
	Input         *note.Note
	OutputNote    *note.Note
	ChangeOutput  *note.Note
}

// swapTolerance returns max(0.01 token, 1% of target) in tok's smallest
// unit, the slack the auto-select split is allowed to leave unmatched
// (§4.7).
func swapTolerance(target *big.Int, decimals uint8) *big.Int {
	onePercent := new(big.Int).Div(target, big.NewInt(100))
	var minUnit *big.Int
	if decimals >= 2 {
		minUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)-2), nil)
	} else {
		minUnit = big.NewInt(1)
	}
	if onePercent.Cmp(minUnit) > 0 {
		return onePercent
	}
	return minUnit
}

// PrepareSwap assembles one or more swap proofs covering targetAmount of
// tokenIn, converting to tokenOut via quote. When a single note can't
// cover targetAmount, the remaining notes are consumed largest-first
// (skipping any note whose contribution would be non-positive) until the
// target is covered or the shortfall exceeds tolerance, in which case the
// request is rejected outright (§4.7).
func (s *Service) PrepareSwap(ctx context.Context, tokenIn, tokenOut note.Token, targetAmount *big.Int, quote QuoteFunc) ([]*SwapLegPrep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.spendableByToken(tokenIn)
	remaining := new(big.Int).Set(targetAmount)
	var legs []*SwapLegPrep

	for _, input := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		if input.Value.Sign() <= 0 {
			continue
		}
		swapAmount := input.Value
		if swapAmount.Cmp(remaining) > 0 {
			swapAmount = new(big.Int).Set(remaining)
		}

		leg, err := s.prepareSwapLeg(ctx, input, tokenIn, tokenOut, swapAmount, quote)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
		remaining.Sub(remaining, swapAmount)
	}

	if remaining.Sign() > 0 {
		tolerance := swapTolerance(targetAmount, tokenIn.Decimals)
		if remaining.Cmp(tolerance) > 0 {
			return nil, walleterr.New(walleterr.InsufficientNote, "swap target exceeds available notes beyond tolerance")
		}
	}
	return legs, nil
}

func (s *Service) prepareSwapLeg(ctx context.Context, input *note.Note, tokenIn, tokenOut note.Token, swapAmount *big.Int, quote QuoteFunc) (*SwapLegPrep, error) {
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

	outputAmount := quote(swapAmount)
	outputNote, err := note.New(outputAmount, input.Owner, tokenOut)
	if err != nil {
		return nil, err
	}

	changeValue := new(big.Int).Sub(input.Value, swapAmount)
	var change witness.ChangeNote
	var changeCommitment field.Scalar
	var changeOut *note.Note
	if changeValue.Sign() == 0 {
		change = witness.ChangeNote{Value: big.NewInt(0)}
	} else {
		changeOut, err = note.New(changeValue, input.Owner, tokenIn)
		if err != nil {
			return nil, err
		}
		change = witness.ChangeNote{Value: changeOut.Value, Secret: changeOut.Secret, Blinding: changeOut.Blinding}
		changeCommitment = changeOut.Commitment
	}

	proof, nh, err := witness.AssembleSwap(ctx, s.prover, s.id, input, path, root, tokenIn.Address, tokenOut.Address, swapAmount, outputAmount,
		witness.OutputNote{Secret: outputNote.Secret, Blinding: outputNote.Blinding}, outputNote.Commitment, change, changeCommitment)
	if err != nil {
		return nil, err
	}

	return &SwapLegPrep{
		Proof:         proof,
		NullifierHash: nh,
		Root:          root,
		Input:         input,
		OutputNote:    outputNote,
		ChangeOutput:  changeOut,
	}, nil
}

// CompleteSwap finalizes a confirmed swap leg, mirroring CompleteTransfer's
// post-confirmation nullifier check before folding the output and change
// notes into the wallet's note set.
func (s *Service) CompleteSwap(ctx context.Context, leg *SwapLegPrep, outputLeafIndex uint64, changeLeafIndex uint64) (confirmed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spent, err := s.checkSpent(ctx, leg.NullifierHash)
	if err != nil {
		return false, err
	}
	if !spent {
		s.logger.Warn("swap post-confirmation check: nullifier %s not yet spent, retaining input note", leg.NullifierHash.Hex())
		return false, nil
	}

	s.removeNoteByCommitment(leg.Input.Commitment)
	outIdx := outputLeafIndex
	leg.OutputNote.LeafIndex = &outIdx
	s.notes = append(s.notes, leg.OutputNote)
	if leg.ChangeOutput != nil {
		idx := changeLeafIndex
		leg.ChangeOutput.LeafIndex = &idx
		s.notes = append(s.notes, leg.ChangeOutput)
	}
	if err := s.persistNotes(); err != nil {
		return false, err
	}
	s.logger.Audit("swap_confirmed", map[string]interface{}{
		"nullifierHash":    leg.NullifierHash.Hex(),
		"outputCommitment": leg.OutputNote.Commitment.Hex(),
	})
	return true, nil
}
