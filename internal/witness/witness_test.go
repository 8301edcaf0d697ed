package witness

import (
	"context"
	"math/big"
	"testing"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/identity"
	"github.com/notfartdev/zdoge-sub004/internal/merkle"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// stubProver records the last assignment it was handed and returns a fixed
// proof, standing in for the opaque proving backend in tests.
type stubProver struct {
	lastTransfer *TransferCircuit
	lastUnshield *UnshieldCircuit
	lastSwap     *SwapCircuit
}

func (s *stubProver) ProveShield(ctx context.Context, a *ShieldCircuit) (Groth16Proof, error) {
	return Groth16Proof{}, nil
}
func (s *stubProver) ProveTransfer(ctx context.Context, a *TransferCircuit) (Groth16Proof, error) {
	s.lastTransfer = a
	return Groth16Proof{}, nil
}
func (s *stubProver) ProveUnshield(ctx context.Context, a *UnshieldCircuit) (Groth16Proof, error) {
	s.lastUnshield = a
	return Groth16Proof{}, nil
}
func (s *stubProver) ProveSwap(ctx context.Context, a *SwapCircuit) (Groth16Proof, error) {
	s.lastSwap = a
	return Groth16Proof{}, nil
}

func mustIdentity(t *testing.T) identity.Identity {
	t.Helper()
	id, err := identity.Recover(big.NewInt(1))
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	return id
}

var dogeToken = note.Token{Symbol: "DOGE", Address: field.NewScalar(big.NewInt(1)), Decimals: 18}

func TestAssembleShieldRejectsCommitmentMismatch(t *testing.T) {
	id := mustIdentity(t)
	n, err := note.New(big.NewInt(100), id.Address(), dogeToken)
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	n.Commitment = field.NewScalar(big.NewInt(999)) // corrupt it

	_, err = AssembleShield(context.Background(), &stubProver{}, n)
	if !walleterrIsKind(err, walleterr.CommitmentMismatch) {
		t.Fatalf("expected CommitmentMismatch, got %v", err)
	}
}

func TestAssembleShieldHappyPath(t *testing.T) {
	id := mustIdentity(t)
	n, err := note.New(big.NewInt(100), id.Address(), dogeToken)
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	if _, err := AssembleShield(context.Background(), &stubProver{}, n); err != nil {
		t.Fatalf("AssembleShield: %v", err)
	}
}

func leafNote(t *testing.T, value int64, owner field.Scalar, leafIndex uint64) *note.Note {
	t.Helper()
	n, err := note.New(big.NewInt(value), owner, dogeToken)
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	n.LeafIndex = &leafIndex
	return n
}

func TestAssembleTransferValueConservation(t *testing.T) {
	id := mustIdentity(t)
	input := leafNote(t, 10, id.Address(), 0)
	tree := merkle.Build([]merkle.Leaf{{Commitment: input.Commitment, LeafIndex: 0}})
	path := tree.PathFor(0)

	out1, err := note.New(big.NewInt(7), field.NewScalar(big.NewInt(42)), dogeToken)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := note.New(big.NewInt(2), id.Address(), dogeToken)
	if err != nil {
		t.Fatal(err)
	}
	fee := big.NewInt(1)

	prover := &stubProver{}
	_, nh, err := AssembleTransfer(context.Background(), prover, id, input, path, tree.Root(), out1, out2, field.NewScalar(big.NewInt(7)), fee)
	if err != nil {
		t.Fatalf("AssembleTransfer: %v", err)
	}
	if nh.IsZero() {
		t.Fatalf("expected non-zero nullifier hash")
	}
	if prover.lastTransfer == nil {
		t.Fatalf("expected prover to be invoked")
	}

	// now break value conservation: wrong fee
	_, _, err = AssembleTransfer(context.Background(), prover, id, input, path, tree.Root(), out1, out2, field.NewScalar(big.NewInt(7)), big.NewInt(2))
	if !walleterrIsKind(err, walleterr.ValueConservationViolation) {
		t.Fatalf("expected ValueConservationViolation, got %v", err)
	}
}

func TestAssembleTransferRejectsOwnershipMismatch(t *testing.T) {
	id := mustIdentity(t)
	other, err := identity.Recover(big.NewInt(2))
	if err != nil {
		t.Fatal(err)
	}
	input := leafNote(t, 10, other.Address(), 0)
	tree := merkle.Build([]merkle.Leaf{{Commitment: input.Commitment, LeafIndex: 0}})
	path := tree.PathFor(0)

	out1, _ := note.New(big.NewInt(9), other.Address(), dogeToken)
	out2, _ := note.New(big.NewInt(1), other.Address(), dogeToken)
	_, _, err = AssembleTransfer(context.Background(), &stubProver{}, id, input, path, tree.Root(), out1, out2, field.Scalar{}, big.NewInt(0))
	if !walleterrIsKind(err, walleterr.OwnershipMismatch) {
		t.Fatalf("expected OwnershipMismatch, got %v", err)
	}
}

func TestAssembleUnshieldZeroChange(t *testing.T) {
	id := mustIdentity(t)
	input := leafNote(t, 5, id.Address(), 0)
	tree := merkle.Build([]merkle.Leaf{{Commitment: input.Commitment, LeafIndex: 0}})
	path := tree.PathFor(0)

	change := ChangeNote{Value: big.NewInt(0)}
	prover := &stubProver{}
	_, _, err := AssembleUnshield(context.Background(), prover, id, input, path, tree.Root(), field.NewScalar(big.NewInt(55)), big.NewInt(5), change, field.Scalar{}, field.Scalar{}, big.NewInt(0))
	if err != nil {
		t.Fatalf("AssembleUnshield: %v", err)
	}
	if prover.lastUnshield == nil {
		t.Fatalf("expected prover to be invoked")
	}
	got, ok := prover.lastUnshield.ChangeIsZero.(*big.Int)
	if !ok || got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected ChangeIsZero=1 in assignment, got %v", prover.lastUnshield.ChangeIsZero)
	}
}

func TestAssembleUnshieldRejectsFeeExceedingAmount(t *testing.T) {
	id := mustIdentity(t)
	input := leafNote(t, 5, id.Address(), 0)
	tree := merkle.Build([]merkle.Leaf{{Commitment: input.Commitment, LeafIndex: 0}})
	path := tree.PathFor(0)

	change := ChangeNote{Value: big.NewInt(0)}
	_, _, err := AssembleUnshield(context.Background(), &stubProver{}, id, input, path, tree.Root(), field.NewScalar(big.NewInt(55)), big.NewInt(1), change, field.Scalar{}, field.Scalar{}, big.NewInt(2))
	if !walleterrIsKind(err, walleterr.InsufficientNote) {
		t.Fatalf("expected InsufficientNote, got %v", err)
	}
}

func walleterrIsKind(err error, k walleterr.Kind) bool {
	we, ok := err.(*walleterr.Error)
	return ok && we.Kind == k
}
