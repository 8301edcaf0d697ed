package witness

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/identity"
	"github.com/notfartdev/zdoge-sub004/internal/merkle"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// OutputNote is the (secret, blinding) pair for a swap's output-token note;
// its value is the quoted outputAmount and its owner is always the current
// identity (§4.5: "C_out is an output-token note owned by the same
// identity").
type OutputNote struct {
	Secret   field.Scalar
	Blinding field.Scalar
}

// AssembleSwap builds the swap circuit's inputs: one input note is consumed
// for swapAmount of its token, producing an output-token note and an
// optional same-token change note. The exchange-rate check itself lives
// on-chain; this assembly only transports swapAmount/outputAmount and
// enforces the same-token value conservation and ownership invariants of
// §4.5.
func AssembleSwap(ctx context.Context, prover Prover, id identity.Identity, input *note.Note, path merkle.Path, root field.Scalar, tokenIn, tokenOut field.Scalar, swapAmount, outputAmount *big.Int, out OutputNote, outCommitment field.Scalar, change ChangeNote, changeCommitment field.Scalar) (Groth16Proof, field.Scalar, error) {
	if input.LeafIndex == nil {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.NoLeafIndex, "swap: input note has no confirmed leaf index")
	}
	if !input.Owner.Equal(id.Address()) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.OwnershipMismatch, "swap: input note is not owned by the current identity")
	}
	if swapAmount.Sign() <= 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.InvalidInput, "swap: swap_amount must be > 0")
	}

	sum := new(big.Int).Add(swapAmount, change.Value)
	if sum.Cmp(input.Value) != 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.ValueConservationViolation, "swap: v_note != swap_amount + v_change")
	}

	expectedOut := note.Commitment(outputAmount, input.Owner, out.Secret, out.Blinding)
	if !expectedOut.Equal(outCommitment) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "swap: output-token commitment mismatch")
	}

	changeIsZero := change.Value.Sign() == 0
	if changeIsZero {
		if !changeCommitment.IsZero() {
			return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "swap: change_commitment must be 0 when v_change is 0")
		}
	} else {
		expectedChange := note.Commitment(change.Value, input.Owner, change.Secret, change.Blinding)
		if !expectedChange.Equal(changeCommitment) {
			return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "swap: change commitment mismatch")
		}
	}

	nh, err := input.NullifierHash(id.SpendingKey())
	if err != nil {
		return Groth16Proof{}, field.Scalar{}, err
	}

	siblings, directions := pathVars(path)
	assignment := &SwapCircuit{
		Root:           scalarVar(root),
		NH:             scalarVar(nh),
		COut:           scalarVar(outCommitment),
		CChange:        scalarVar(changeCommitment),
		TokenIn:        scalarVar(tokenIn),
		TokenOut:       scalarVar(tokenOut),
		SwapAmount:     bigVar(swapAmount),
		OutputAmount:   bigVar(outputAmount),
		ValueIn:        bigVar(input.Value),
		OwnerIn:        scalarVar(input.Owner),
		SecretIn:       scalarVar(input.Secret),
		BlindingIn:     scalarVar(input.Blinding),
		LeafIndex:      new(big.Int).SetUint64(*input.LeafIndex),
		Siblings:       siblings,
		Directions:     directions,
		Sk:             scalarVar(id.SpendingKey()),
		SecretOut:      scalarVar(out.Secret),
		BlindingOut:    scalarVar(out.Blinding),
		ValueChange:    bigVar(change.Value),
		SecretChange:   scalarVar(change.Secret),
		BlindingChange: scalarVar(change.Blinding),
		ChangeIsZero:   boolVar(changeIsZero),
	}
	proof, err := prover.ProveSwap(ctx, assignment)
	return proof, nh, wrapProverErr(err)
}
