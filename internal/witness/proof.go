package witness

import (
	"context"
	"math/big"

	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// G1 is a BN254 G1 affine point, (X, Y) in the base field.
type G1 struct {
	X *big.Int
	Y *big.Int
}

// G2 is a BN254 G2 affine point over the quadratic twist: each coordinate
// is c0 + c1*u.
type G2 struct {
	X0, X1 *big.Int
	Y0, Y1 *big.Int
}

// Groth16Proof is the triple (pi_A, pi_B, pi_C) the opaque prover returns,
// pi_B living in the twist (§4.5).
type Groth16Proof struct {
	A G1
	B G2
	C G1
}

// FlattenForVerifier flattens a Groth16Proof into the 8-scalar array the
// deployed solidity verifier expects: [A.x, A.y, B.x.c1, B.x.c0, B.y.c1,
// B.y.c0, C.x, C.y]. Any other order causes on-chain rejection (§4.5);
// this permutation is not negotiable and must not be "simplified" to the
// natural (c0, c1) order gnark uses internally.
func (p Groth16Proof) FlattenForVerifier() [8]*big.Int {
	return [8]*big.Int{
		p.A.X, p.A.Y,
		p.B.X1, p.B.X0,
		p.B.Y1, p.B.Y0,
		p.C.X, p.C.Y,
	}
}

// CircuitID names one of the four deployed circuits.
type CircuitID int

const (
	CircuitShield CircuitID = iota
	CircuitTransfer
	CircuitUnshield
	CircuitSwap
)

func (id CircuitID) String() string {
	switch id {
	case CircuitShield:
		return "shield"
	case CircuitTransfer:
		return "transfer"
	case CircuitUnshield:
		return "unshield"
	case CircuitSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Prover is the opaque proving backend the core calls into: witness
// generation, Groth16 proving, and the MiMC-sponge hash implementation it
// uses internally are all out of scope for this module (§1). The core
// only ever hands a filled-in circuit assignment across this interface and
// gets a proof back, mirroring the teacher's
// `w, _ := frontend.NewWitness(witness, ...); groth16.Prove(ccs, pk, w)`
// call shape but with ccs/pk ownership pushed to the host.
type Prover interface {
	ProveShield(ctx context.Context, assignment *ShieldCircuit) (Groth16Proof, error)
	ProveTransfer(ctx context.Context, assignment *TransferCircuit) (Groth16Proof, error)
	ProveUnshield(ctx context.Context, assignment *UnshieldCircuit) (Groth16Proof, error)
	ProveSwap(ctx context.Context, assignment *SwapCircuit) (Groth16Proof, error)
}

func wrapProverErr(err error) error {
	if err == nil {
		return nil
	}
	return walleterr.Wrap(walleterr.ProverFailure, "proof generation failed", err)
}
