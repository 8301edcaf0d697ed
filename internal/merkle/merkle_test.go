package merkle

import (
	"context"
	"math/big"
	"testing"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

func TestZeroLadderBuildsUpward(t *testing.T) {
	z0 := Zero(0)
	if !z0.Equal(field.Keccak256Mod([]byte("dogenado"))) {
		t.Errorf("Zero(0) should be the keccak256 seed")
	}
	for level := 1; level <= Depth; level++ {
		want := field.H2(Zero(level-1), Zero(level-1))
		if !Zero(level).Equal(want) {
			t.Errorf("Zero(%d) does not match H2(Zero(%d), Zero(%d))", level, level-1, level-1)
		}
	}
}

func TestBuildEmptyTreeRootIsZeroLadderTop(t *testing.T) {
	tr := Build(nil)
	if !tr.Root().Equal(Zero(Depth)) {
		t.Errorf("empty tree root should equal Zero(Depth)")
	}
}

func leaf(idx uint64, v int64) Leaf {
	return Leaf{Commitment: field.NewScalar(big.NewInt(v)), LeafIndex: idx}
}

func TestBuildSingleLeafPathVerifies(t *testing.T) {
	lf := leaf(5, 42)
	tr := Build([]Leaf{lf})
	path := tr.PathFor(5)

	cur := lf.Commitment
	idx := uint64(5)
	for level := 0; level < Depth; level++ {
		sib := path.Siblings[level]
		if path.Directions[level] == 0 {
			cur = field.H2(cur, sib)
		} else {
			cur = field.H2(sib, cur)
		}
		idx /= 2
	}
	if !cur.Equal(tr.Root()) {
		t.Errorf("recomputed root from path does not match tree root")
	}
}

func TestBuildDuplicateLeafIndexKeepsFirstOccurrence(t *testing.T) {
	first := leaf(3, 100)
	second := leaf(3, 200)
	tr := Build([]Leaf{first, second})
	path := tr.PathFor(3)

	cur := first.Commitment
	for level := 0; level < Depth; level++ {
		sib := path.Siblings[level]
		if path.Directions[level] == 0 {
			cur = field.H2(cur, sib)
		} else {
			cur = field.H2(sib, cur)
		}
	}
	if !cur.Equal(tr.Root()) {
		t.Errorf("root should be derived from the first-seen duplicate leaf")
	}
}

func TestBuildMultipleLeavesUnordered(t *testing.T) {
	leaves := []Leaf{leaf(7, 1), leaf(2, 2), leaf(0, 3)}
	sortedOrder := []Leaf{leaf(0, 3), leaf(2, 2), leaf(7, 1)}
	trA := Build(leaves)
	trB := Build(sortedOrder)
	if !trA.Root().Equal(trB.Root()) {
		t.Errorf("tree root should not depend on input order")
	}
}

type fakeRootChecker struct {
	known map[string]bool
	err   error
}

func (f *fakeRootChecker) IsKnownRoot(ctx context.Context, root field.Scalar) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[root.Hex()], nil
}

func (f *fakeRootChecker) LatestRoot(ctx context.Context) (field.Scalar, error) {
	return field.Scalar{}, nil
}

func TestVerifyRootKnown(t *testing.T) {
	root := field.NewScalar(big.NewInt(9))
	checker := &fakeRootChecker{known: map[string]bool{root.Hex(): true}}
	if err := VerifyRoot(context.Background(), checker, root); err != nil {
		t.Errorf("expected known root to verify, got %v", err)
	}
}

func TestVerifyRootUnknownReturnsRootMismatch(t *testing.T) {
	root := field.NewScalar(big.NewInt(9))
	checker := &fakeRootChecker{known: map[string]bool{}}
	err := VerifyRoot(context.Background(), checker, root)
	if err == nil {
		t.Fatalf("expected RootMismatch error")
	}
	werr, ok := err.(*walleterr.Error)
	if !ok || werr.Kind != walleterr.RootMismatch {
		t.Errorf("expected RootMismatch kind, got %v", err)
	}
}

type fakeIndexer struct {
	path Path
	root field.Scalar
	err  error
}

func (f *fakeIndexer) Path(ctx context.Context, leafIndex uint64) (Path, field.Scalar, error) {
	return f.path, f.root, f.err
}

func TestPathWithFallbackUsesLocalTreeWhenKnown(t *testing.T) {
	tr := Build([]Leaf{leaf(1, 11)})
	checker := &fakeRootChecker{known: map[string]bool{tr.Root().Hex(): true}}
	path, root, err := PathWithFallback(context.Background(), tr, 1, checker, nil)
	if err != nil {
		t.Fatalf("PathWithFallback failed: %v", err)
	}
	if !root.Equal(tr.Root()) {
		t.Errorf("expected local tree root to be used")
	}
	if path != tr.PathFor(1) {
		t.Errorf("expected local tree path to be returned")
	}
}

func TestPathWithFallbackUsesIndexerWhenLocalUnknown(t *testing.T) {
	tr := Build([]Leaf{leaf(1, 11)})
	fbRoot := field.NewScalar(big.NewInt(123))
	checker := &fakeRootChecker{known: map[string]bool{fbRoot.Hex(): true}}
	idx := &fakeIndexer{root: fbRoot}
	_, root, err := PathWithFallback(context.Background(), tr, 1, checker, idx)
	if err != nil {
		t.Fatalf("PathWithFallback failed: %v", err)
	}
	if !root.Equal(fbRoot) {
		t.Errorf("expected fallback root to be used")
	}
}

func TestPathWithFallbackFailsWithoutFallback(t *testing.T) {
	tr := Build([]Leaf{leaf(1, 11)})
	checker := &fakeRootChecker{known: map[string]bool{}}
	if _, _, err := PathWithFallback(context.Background(), tr, 1, checker, nil); err == nil {
		t.Errorf("expected error when local root unknown and no fallback configured")
	}
}
