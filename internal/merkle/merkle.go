// Package merkle implements the sparse Merkle tree reconstruction used to
// prove note membership: the zero-hash ladder, event-driven sparse
// rebuild, sibling-path extraction, and a root cross-check against the
// chain adapter.
//
// Grounded on m1zr-ccoin/core/internal/zkp/merkle.go's CommitmentTree
// (sparse-map store, sibling walk, recursive empty-hash ladder), but that
// teacher keeps a live store with context-threaded Get/Set calls for an
// always-on tree; this package instead rebuilds the whole sparse map from
// an ordered event list on each call, matching §4.4's "rebuilt on
// demand" contract and explicitly avoiding the dense 2^L construction the
// spec calls out as a bug to remove.
package merkle

import (
	"context"
	"sort"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// Depth is the fixed tree depth L, per §3.
const Depth = 20

// ZeroLadder holds Z_0..Z_{L-1} (and the root-level Z_L), each computed
// once per process and cached — the teacher's "process-wide lazy
// initializer for an immutable constant schedule" exception (§9).
type ZeroLadder struct {
	z [Depth + 1]field.Scalar
}

var ladder = buildLadder()

func buildLadder() ZeroLadder {
	var l ZeroLadder
	l.z[0] = field.Keccak256Mod([]byte("dogenado"))
	for i := 1; i <= Depth; i++ {
		l.z[i] = field.H2(l.z[i-1], l.z[i-1])
	}
	return l
}

// Zero returns Z_level, the empty-subtree root at the given level (level 0
// is a leaf, level Depth is the root).
func Zero(level int) field.Scalar {
	return ladder.z[level]
}

// Leaf is a (commitment, leaf index) pair as observed on-chain.
type Leaf struct {
	Commitment field.Scalar
	LeafIndex  uint64
}

// cellKey addresses a sparse-tree cell by (level, index).
type cellKey struct {
	level int
	index uint64
}

// Tree is a rebuilt-on-demand sparse Merkle tree snapshot: a transient
// value owned by the caller of a witness assembly (§3).
type Tree struct {
	cells map[cellKey]field.Scalar
	root  field.Scalar
}

// Build reconstructs the sparse tree from an ordered list of on-chain
// (commitment, leaf_index) events. Events need not arrive pre-sorted;
// Build sorts by leaf index and resolves duplicate indices to the first
// occurrence in the input order (not the sorted order), per §4.4 and
// §8's boundary behavior.
func Build(leaves []Leaf) *Tree {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	// stable sort so equal-index duplicates keep their original relative
	// order, letting the first-seen occurrence win below.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LeafIndex < sorted[j].LeafIndex
	})

	t := &Tree{cells: make(map[cellKey]field.Scalar)}
	seen := make(map[uint64]bool)
	for _, lf := range sorted {
		if seen[lf.LeafIndex] {
			continue
		}
		seen[lf.LeafIndex] = true
		t.cells[cellKey{0, lf.LeafIndex}] = lf.Commitment
	}

	cur := map[uint64]bool{}
	for k := range t.cells {
		if k.level == 0 {
			cur[k.index] = true
		}
	}
	for level := 0; level < Depth; level++ {
		parents := make(map[uint64]bool)
		for idx := range cur {
			parents[idx/2] = true
		}
		for pidx := range parents {
			leftIdx, rightIdx := pidx*2, pidx*2+1
			left := t.cellOrZero(level, leftIdx)
			right := t.cellOrZero(level, rightIdx)
			t.cells[cellKey{level + 1, pidx}] = field.H2(left, right)
		}
		cur = parents
	}

	if root, ok := t.cells[cellKey{Depth, 0}]; ok {
		t.root = root
	} else {
		t.root = Zero(Depth)
	}
	return t
}

func (t *Tree) cellOrZero(level int, index uint64) field.Scalar {
	if v, ok := t.cells[cellKey{level, index}]; ok {
		return v
	}
	return Zero(level)
}

// Root returns the tree's root, defaulting to Z_L if no leaves exist.
func (t *Tree) Root() field.Scalar {
	return t.root
}

// Path is a Merkle inclusion path: siblings bottom-up, and the
// corresponding direction bits (0 = current node is the left child).
type Path struct {
	Siblings   [Depth]field.Scalar
	Directions [Depth]uint8
}

// PathFor extracts the inclusion path for leafIndex, walking bottom-up;
// any absent sibling defaults to the level's zero hash.
func (t *Tree) PathFor(leafIndex uint64) Path {
	var p Path
	idx := leafIndex
	for level := 0; level < Depth; level++ {
		siblingIdx := idx ^ 1
		p.Siblings[level] = t.cellOrZero(level, siblingIdx)
		p.Directions[level] = uint8(idx % 2)
		idx /= 2
	}
	return p
}

// RootChecker is the subset of the chain adapter the engine consults to
// validate a computed root before it is handed to the witness assembly.
// An external indexer may be queried as a fallback when the locally
// computed root is unknown on-chain (§4.4).
type RootChecker interface {
	IsKnownRoot(ctx context.Context, root field.Scalar) (bool, error)
	LatestRoot(ctx context.Context) (field.Scalar, error)
}

// IndexerFallback optionally supplies an alternate inclusion path sourced
// from an external indexer, used only when the locally computed root is
// not recognized on-chain.
type IndexerFallback interface {
	Path(ctx context.Context, leafIndex uint64) (Path, field.Scalar, error)
}

// VerifyRoot cross-checks a locally computed root against the chain
// adapter and reports RootMismatch if the root is unknown. It consults no
// indexer fallback; PathWithFallback does that.
func VerifyRoot(ctx context.Context, chain RootChecker, root field.Scalar) error {
	known, err := chain.IsKnownRoot(ctx, root)
	if err != nil {
		return walleterr.Wrap(walleterr.NetworkUnavailable, "is_known_root query failed", err)
	}
	if known {
		return nil
	}
	return walleterr.New(walleterr.RootMismatch, "computed root is not known on-chain")
}

// PathWithFallback returns an inclusion path for leafIndex along with the
// root it was proven against, preferring the locally built tree and
// falling back to an external indexer only if the local root is unknown
// on-chain.
func PathWithFallback(ctx context.Context, t *Tree, leafIndex uint64, chain RootChecker, fallback IndexerFallback) (Path, field.Scalar, error) {
	root := t.Root()
	if err := VerifyRoot(ctx, chain, root); err == nil {
		return t.PathFor(leafIndex), root, nil
	}
	if fallback == nil {
		return Path{}, field.Scalar{}, walleterr.New(walleterr.RootMismatch, "local root unknown on-chain and no indexer fallback configured")
	}
	path, fbRoot, err := fallback.Path(ctx, leafIndex)
	if err != nil {
		return Path{}, field.Scalar{}, walleterr.Wrap(walleterr.NetworkUnavailable, "indexer fallback failed", err)
	}
	if err := VerifyRoot(ctx, chain, fbRoot); err != nil {
		return Path{}, field.Scalar{}, err
	}
	return path, fbRoot, nil
}
