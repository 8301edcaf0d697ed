package witness

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// AssembleShield builds the shield circuit's public/private inputs for a
// freshly-created note and invokes the prover, after independently
// recomputing C from the private values (§4.5: "the component
// verifies C was produced from the private values before calling the
// prover").
func AssembleShield(ctx context.Context, prover Prover, n *note.Note) (Groth16Proof, error) {
	recomputed := note.Commitment(n.Value, n.Owner, n.Secret, n.Blinding)
	if !recomputed.Equal(n.Commitment) {
		return Groth16Proof{}, walleterr.New(walleterr.CommitmentMismatch, "shield: note commitment does not match its private fields")
	}

	assignment := &ShieldCircuit{
		Commitment: scalarVar(n.Commitment),
		Value:      bigVar(n.Value),
		Owner:      scalarVar(n.Owner),
		Secret:     scalarVar(n.Secret),
		Blinding:   scalarVar(n.Blinding),
	}
	proof, err := prover.ProveShield(ctx, assignment)
	return proof, wrapProverErr(err)
}

// scalarVar converts an internal/field.Scalar to the frontend.Variable
// representation the gnark witness struct expects (its canonical big.Int).
func scalarVar(s field.Scalar) *big.Int {
	return s.BigInt()
}

func bigVar(v *big.Int) *big.Int {
	return new(big.Int).Set(v)
}
