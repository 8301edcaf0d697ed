// Package wallet implements the Wallet Service (S): the stateful
// orchestrator that holds an identity, a live note set, and a pool
// address, and drives the prepare/confirm lifecycle for shield, transfer,
// unshield, and swap operations across the witness, merkle, memo, chain,
// and storage collaborators (§4.7).
//
// Grounded on internal/zerocash/api.go's Wallet/Participant orchestration
// (load identity, hold a note/commitment cache, build a tx, call the
// ledger), generalized from that teacher's single-shot "build one
// transaction" flow into this spec's two-phase prepare/confirm model,
// with explicit just-in-time and post-confirmation nullifier checks
// neither teacher flow has (the auction protocol never needed them: a bid
// is submitted once and never partially confirmed).
package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/identity"
	"github.com/notfartdev/zdoge-sub004/internal/memo"
	"github.com/notfartdev/zdoge-sub004/internal/merkle"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/storage"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
	"github.com/notfartdev/zdoge-sub004/internal/walletlog"
	"github.com/notfartdev/zdoge-sub004/internal/witness"
)

const (
	storeKeyIdentity           = "identity"
	storeKeyNotes              = "notes"
	storeKeyProcessedTransfers = "processed_transfers"
	storeKeyProcessedUnshields = "processed_unshields"
)

// Service is the wallet's single-owner, single-threaded orchestrator (spec
// §5: "a host targeting a multi-threaded runtime must serialize the
// wallet service behind a single owner"). Its exported methods take a
// mutex internally only to make that serialization explicit and safe to
// violate by accident, not to offer genuine concurrent access.
type Service struct {
	mu sync.Mutex

	id     identity.Identity
	store  storage.Store
	chain  chain.Adapter
	pool   common.Address
	prover witness.Prover
	logger *walletlog.Logger

	notes []*note.Note

	leaves     []merkle.Leaf
	treeCursor uint64
	tree       *merkle.Tree

	scanner            *memo.Scanner
	unshieldWatcher    *memo.UnshieldWatcher
	processedTransfers *memo.ProcessedSet
	processedUnshields *memo.ProcessedSet
}

// Config bundles a Service's fixed collaborators.
type Config struct {
	Identity  identity.Identity
	Store     storage.Store
	Chain     chain.Adapter
	Pool      common.Address
	Prover    witness.Prover
	Logger    *walletlog.Logger
	BaseToken note.Token // the pool's built-in token (DOGE), used by the scanner
}

// NewService constructs a Service, loading any previously persisted note
// set and dedup sets from cfg.Store.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = walletlog.NewDiscard()
	}
	s := &Service{
		id:     cfg.Identity,
		store:  cfg.Store,
		chain:  cfg.Chain,
		pool:   cfg.Pool,
		prover: cfg.Prover,
		logger: cfg.Logger,
		tree:   merkle.Build(nil),
	}

	if err := s.loadNotes(); err != nil {
		return nil, err
	}

	processedTransfers, err := memo.LoadProcessedSet(cfg.Store, storeKeyProcessedTransfers)
	if err != nil {
		return nil, err
	}
	processedUnshields, err := memo.LoadProcessedSet(cfg.Store, storeKeyProcessedUnshields)
	if err != nil {
		return nil, err
	}
	s.processedTransfers = processedTransfers
	s.processedUnshields = processedUnshields
	s.scanner = memo.NewScanner(cfg.Chain, cfg.Pool, cfg.Identity.Address(), cfg.BaseToken, processedTransfers)
	s.unshieldWatcher = memo.NewUnshieldWatcher(cfg.Chain, cfg.Pool, common.Address(field.AddressFromScalar(cfg.Identity.Address())), processedUnshields)
	return s, nil
}

func (s *Service) loadNotes() error {
	raw, ok, err := s.store.Get(storeKeyNotes)
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "load notes", err)
	}
	if !ok {
		return nil
	}
	var blobs []note.Blob
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "decode notes", err)
	}
	notes := make([]*note.Note, 0, len(blobs))
	for _, b := range blobs {
		n, err := note.DeserializeBlob(b)
		if err != nil {
			return err
		}
		notes = append(notes, n)
	}
	s.notes = notes
	return nil
}

func (s *Service) persistNotes() error {
	blobs := make([]note.Blob, len(s.notes))
	for i, n := range s.notes {
		blobs[i] = n.Serialize()
	}
	raw, err := json.Marshal(blobs)
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "encode notes", err)
	}
	if err := s.store.Set(storeKeyNotes, raw); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "persist notes", err)
	}
	return nil
}

// Notes returns a snapshot of the wallet's currently held notes.
func (s *Service) Notes() []*note.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*note.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Balance sums the spendable value of notes denominated in tok.
func (s *Service) Balance(tok note.Token) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := big.NewInt(0)
	for _, n := range s.notes {
		if n.IsSpendable() && n.Token.Address.Equal(tok.Address) {
			total.Add(total, n.Value)
		}
	}
	return total
}

func (s *Service) removeNoteByCommitment(c field.Scalar) {
	for i, n := range s.notes {
		if n.Commitment.Equal(c) {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return
		}
	}
}

// selectSpendable returns the smallest spendable note of tok whose value
// is >= minValue, per the transfer auto-select policy (§4.7).
func (s *Service) selectSpendable(tok note.Token, minValue *big.Int) (*note.Note, error) {
	var best *note.Note
	for _, n := range s.notes {
		if !n.IsSpendable() || !n.Token.Address.Equal(tok.Address) {
			continue
		}
		if n.Value.Cmp(minValue) < 0 {
			continue
		}
		if best == nil || n.Value.Cmp(best.Value) < 0 {
			best = n
		}
	}
	if best == nil {
		return nil, walleterr.New(walleterr.InsufficientNote, "no confirmed note covers the requested amount plus fee")
	}
	return best, nil
}

// spendableByToken returns every spendable note of tok, largest value
// first, for the swap auto-select split (§4.7).
func (s *Service) spendableByToken(tok note.Token) []*note.Note {
	var out []*note.Note
	for _, n := range s.notes {
		if n.IsSpendable() && n.Token.Address.Equal(tok.Address) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value.Cmp(out[j].Value) > 0 })
	return out
}

// rootChecker adapts a bound (chain.Adapter, pool) pair to merkle.RootChecker.
type rootChecker struct {
	chain chain.Adapter
	pool  common.Address
}

func (r rootChecker) IsKnownRoot(ctx context.Context, root field.Scalar) (bool, error) {
	return chain.IsKnownRoot(ctx, r.chain, r.pool, root)
}

func (r rootChecker) LatestRoot(ctx context.Context) (field.Scalar, error) {
	return chain.LatestRoot(ctx, r.chain, r.pool)
}

// refreshTree pulls any pool-address logs emitted since the last refresh
// and folds their (commitment, leafIndex) pairs into the sparse tree,
// rebuilding it from the accumulated leaf list (§4.4: rebuilt on
// demand from an ordered event list, never materialized densely).
func (s *Service) refreshTree(ctx context.Context) error {
	height, err := s.chain.BlockNumber(ctx)
	if err != nil {
		return walleterr.Wrap(walleterr.NetworkUnavailable, "fetch block number", err)
	}
	if height < s.treeCursor {
		return nil
	}
	logs, err := s.chain.GetLogs(ctx, chain.LogQuery{Address: s.pool, FromBlock: s.treeCursor, ToBlock: height})
	if err != nil {
		return walleterr.Wrap(walleterr.NetworkUnavailable, "fetch pool logs", err)
	}
	for _, l := range logs {
		if dep, err := chain.ParseDepositEvent(l); err == nil {
			s.leaves = append(s.leaves, merkle.Leaf{Commitment: dep.Commitment, LeafIndex: dep.LeafIndex})
			continue
		}
		if ev, err := chain.ParseTransferEvent(l); err == nil {
			s.leaves = append(s.leaves, merkle.Leaf{Commitment: ev.OutputCommitment1, LeafIndex: ev.LeafIndex1})
			s.leaves = append(s.leaves, merkle.Leaf{Commitment: ev.OutputCommitment2, LeafIndex: ev.LeafIndex2})
		}
	}
	s.tree = merkle.Build(s.leaves)
	s.treeCursor = height + 1
	return nil
}

// pathFor returns an inclusion path and the root it verifies against for
// leafIndex, refreshing the tree first.
func (s *Service) pathFor(ctx context.Context, leafIndex uint64) (merkle.Path, field.Scalar, error) {
	if err := s.refreshTree(ctx); err != nil {
		return merkle.Path{}, field.Scalar{}, err
	}
	return merkle.PathWithFallback(ctx, s.tree, leafIndex, rootChecker{s.chain, s.pool}, nil)
}

// checkSpent queries the pool's is_spent(NH) view — the just-in-time
// check S performs immediately before handing a note to W (§4.7:
// "this is the definitive check; the local cache is advisory").
func (s *Service) checkSpent(ctx context.Context, nh field.Scalar) (bool, error) {
	return chain.IsSpent(ctx, s.chain, s.pool, nh)
}

// PrepareShield assembles a shield proof for a freshly drawn note of the
// given value and token. The caller submits the shield transaction and,
// once it confirms with an assigned leaf index, calls CompleteShield.
func (s *Service) PrepareShield(ctx context.Context, value *big.Int, tok note.Token) (*note.Note, witness.Groth16Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := note.New(value, s.id.Address(), tok)
	if err != nil {
		return nil, witness.Groth16Proof{}, err
	}
	proof, err := witness.AssembleShield(ctx, s.prover, n)
	if err != nil {
		return nil, witness.Groth16Proof{}, err
	}
	return n, proof, nil
}

// CompleteShield assigns the on-chain leaf index to a prepared note and
// folds it into the wallet's note set. Shield has no nullifier to verify
// post-confirmation — it only ever adds a note, it never spends one.
func (s *Service) CompleteShield(n *note.Note, leafIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := leafIndex
	n.LeafIndex = &idx
	s.notes = append(s.notes, n)
	if err := s.persistNotes(); err != nil {
		return err
	}
	s.logger.Audit("shield_confirmed", map[string]interface{}{
		"commitment": n.Commitment.Hex(),
		"leafIndex":  leafIndex,
	})
	return nil
}

// ImportReceivedNote adds a note the caller obtained out of band (e.g. a
// "dogenado-note-v1-..." share string) to the wallet's note set, skipping
// anything already held under the same commitment.
func (s *Service) ImportReceivedNote(n *note.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.notes {
		if existing.Commitment.Equal(n.Commitment) {
			return nil
		}
	}
	s.notes = append(s.notes, n)
	return s.persistNotes()
}

// Backup returns the encrypted identity and note blobs verbatim from
// storage, for the caller to archive.
func (s *Service) Backup() (identityBlob, notesBlob []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identityBlob, ok, err := s.store.Get(storeKeyIdentity)
	if err != nil {
		return nil, nil, walleterr.Wrap(walleterr.StorageUnavailable, "read identity for backup", err)
	}
	if !ok {
		return nil, nil, walleterr.New(walleterr.StorageUnavailable, "no identity persisted yet")
	}
	notesBlob, ok, err = s.store.Get(storeKeyNotes)
	if err != nil {
		return nil, nil, walleterr.Wrap(walleterr.StorageUnavailable, "read notes for backup", err)
	}
	if !ok {
		notesBlob = []byte("[]")
	}
	return identityBlob, notesBlob, nil
}

// Restore overwrites the wallet's persisted identity and note blobs and
// reloads the in-memory note set from them.
func (s *Service) Restore(identityBlob, notesBlob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(storeKeyIdentity, identityBlob); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "restore identity", err)
	}
	if err := s.store.Set(storeKeyNotes, notesBlob); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "restore notes", err)
	}
	return s.loadNotes()
}
