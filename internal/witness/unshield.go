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

// ChangeNote is the (value, secret, blinding) triple for an unshield or
// swap's same-identity change output; its owner is always the spending
// identity's own address (§4.5).
type ChangeNote struct {
	Value    *big.Int
	Secret   field.Scalar
	Blinding field.Scalar
}

// AssembleUnshield builds the unshield circuit's inputs: a note is
// withdrawn to a public EVM recipient, optionally leaving a same-owner
// change note, enforcing §4.5's value-conservation and
// change-commitment invariants before calling the prover.
func AssembleUnshield(ctx context.Context, prover Prover, id identity.Identity, input *note.Note, path merkle.Path, root field.Scalar, recipient field.Scalar, amount *big.Int, change ChangeNote, changeCommitment field.Scalar, relayer field.Scalar, fee *big.Int) (Groth16Proof, field.Scalar, error) {
	if input.LeafIndex == nil {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.NoLeafIndex, "unshield: input note has no confirmed leaf index")
	}
	if !input.Owner.Equal(id.Address()) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.OwnershipMismatch, "unshield: input note is not owned by the current identity")
	}
	if fee.Cmp(amount) > 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.InsufficientNote, "unshield: fee must not exceed amount")
	}

	sum := new(big.Int).Add(amount, change.Value)
	sum.Add(sum, fee)
	if sum.Cmp(input.Value) != 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.ValueConservationViolation, "unshield: v_note != amount + v_change + fee")
	}

	changeIsZero := change.Value.Sign() == 0
	if changeIsZero {
		if !changeCommitment.IsZero() {
			return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "unshield: change_commitment must be 0 when v_change is 0")
		}
	} else {
		expected := note.Commitment(change.Value, input.Owner, change.Secret, change.Blinding)
		if !expected.Equal(changeCommitment) {
			return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "unshield: change commitment mismatch")
		}
	}

	nh, err := input.NullifierHash(id.SpendingKey())
	if err != nil {
		return Groth16Proof{}, field.Scalar{}, err
	}

	siblings, directions := pathVars(path)
	assignment := &UnshieldCircuit{
		Root:             scalarVar(root),
		NH:               scalarVar(nh),
		Recipient:        scalarVar(recipient),
		Amount:           bigVar(amount),
		ChangeCommitment: scalarVar(changeCommitment),
		Relayer:          scalarVar(relayer),
		Fee:              bigVar(fee),
		ValueIn:          bigVar(input.Value),
		OwnerIn:          scalarVar(input.Owner),
		SecretIn:         scalarVar(input.Secret),
		BlindingIn:       scalarVar(input.Blinding),
		LeafIndex:        new(big.Int).SetUint64(*input.LeafIndex),
		Siblings:         siblings,
		Directions:       directions,
		Sk:               scalarVar(id.SpendingKey()),
		ValueChange:      bigVar(change.Value),
		SecretChange:     scalarVar(change.Secret),
		BlindingChange:   scalarVar(change.Blinding),
		ChangeIsZero:     boolVar(changeIsZero),
	}
	proof, err := prover.ProveUnshield(ctx, assignment)
	return proof, nh, wrapProverErr(err)
}

func boolVar(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
