package witness

import (
	"context"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/identity"
	"github.com/notfartdev/zdoge-sub004/internal/merkle"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// pathVars converts a merkle.Path into the [Depth]frontend.Variable arrays
// the circuit structs expect.
func pathVars(p merkle.Path) (siblings [Depth]frontend.Variable, directions [Depth]frontend.Variable) {
	for i := 0; i < Depth; i++ {
		siblings[i] = p.Siblings[i].BigInt()
		directions[i] = big.NewInt(int64(p.Directions[i]))
	}
	return
}

// AssembleTransfer builds the transfer circuit's inputs for spending a
// single input note into two outputs (a send output and a change output),
// enforcing the pre-proving checks of §4.5 before calling the prover.
func AssembleTransfer(ctx context.Context, prover Prover, id identity.Identity, input *note.Note, path merkle.Path, root field.Scalar, out1, out2 *note.Note, relayer field.Scalar, fee *big.Int) (Groth16Proof, field.Scalar, error) {
	if input.LeafIndex == nil {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.NoLeafIndex, "transfer: input note has no confirmed leaf index")
	}
	if !input.Owner.Equal(id.Address()) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.OwnershipMismatch, "transfer: input note is not owned by the current identity")
	}

	sum := new(big.Int).Add(out1.Value, out2.Value)
	sum.Add(sum, fee)
	if sum.Cmp(input.Value) != 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.ValueConservationViolation, "transfer: v_in != v_send + v_change + fee")
	}
	if out2.Value.Sign() < 0 {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.ValueConservationViolation, "transfer: change value must be >= 0")
	}

	if !note.Commitment(out1.Value, out1.Owner, out1.Secret, out1.Blinding).Equal(out1.Commitment) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "transfer: send-output commitment mismatch")
	}
	if !note.Commitment(out2.Value, out2.Owner, out2.Secret, out2.Blinding).Equal(out2.Commitment) {
		return Groth16Proof{}, field.Scalar{}, walleterr.New(walleterr.CommitmentMismatch, "transfer: change-output commitment mismatch")
	}

	nh, err := input.NullifierHash(id.SpendingKey())
	if err != nil {
		return Groth16Proof{}, field.Scalar{}, err
	}

	siblings, directions := pathVars(path)
	assignment := &TransferCircuit{
		Root:       scalarVar(root),
		NH:         scalarVar(nh),
		C1:         scalarVar(out1.Commitment),
		C2:         scalarVar(out2.Commitment),
		Relayer:    scalarVar(relayer),
		Fee:        bigVar(fee),
		ValueIn:    bigVar(input.Value),
		OwnerIn:    scalarVar(input.Owner),
		SecretIn:   scalarVar(input.Secret),
		BlindingIn: scalarVar(input.Blinding),
		LeafIndex:  new(big.Int).SetUint64(*input.LeafIndex),
		Siblings:   siblings,
		Directions: directions,
		Sk:         scalarVar(id.SpendingKey()),
		Value1:     bigVar(out1.Value),
		Owner1:     scalarVar(out1.Owner),
		Secret1:    scalarVar(out1.Secret),
		Blinding1:  scalarVar(out1.Blinding),
		Value2:     bigVar(out2.Value),
		Owner2:     scalarVar(out2.Owner),
		Secret2:    scalarVar(out2.Secret),
		Blinding2:  scalarVar(out2.Blinding),
	}
	proof, err := prover.ProveTransfer(ctx, assignment)
	return proof, nh, wrapProverErr(err)
}
