// Scanner implements the transfer-discovery half of §4.6: a
// host-driven poll loop that pulls transfer events from the pool address,
// trial-decrypts each output's memo against the wallet's own address, and
// surfaces the notes that decrypt cleanly and whose recomputed commitment
// matches the on-chain value.
//
// Grounded on the obsidian-core ShieldedPool's GetShieldedBalance trial-
// scan stub (other_examples/...blockchain-shielded_pool.go), generalized
// from an in-memory map scan into an RPC-log-window scan driven by
// internal/chain.Adapter, with persistence and rate limiting layered on
// per §4.6.
package memo

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

const (
	// defaultMaxWindow bounds how many blocks a single tick scans, so one
	// slow RPC call can't stall the wallet for an arbitrary window.
	defaultMaxWindow = 10_000
	// defaultInitialLookback is how far back the very first tick looks
	// when no cursor has been persisted yet.
	defaultInitialLookback = 1_000
	// MinPollInterval is the spec-mandated floor on inter-query spacing.
	MinPollInterval = 5 * time.Second
)

// DiscoveredNote is a note the scanner successfully decrypted and
// verified against its on-chain commitment.
type DiscoveredNote struct {
	Note   *note.Note
	TxHash common.Hash
}

// Scanner polls for incoming transfer events addressed to one identity's
// shielded address.
type Scanner struct {
	Chain   chain.Adapter
	Pool    common.Address
	Owner   field.Scalar
	Token   note.Token
	Limiter *PollLimiter

	processed *ProcessedSet

	mu          sync.Mutex
	scanning    bool
	cursor      uint64
	cursorReady bool

	MaxWindow       uint64
	InitialLookback uint64
}

// NewScanner constructs a Scanner for owner's address over pool, persisting
// its dedup set under processed.
func NewScanner(adapter chain.Adapter, pool common.Address, owner field.Scalar, token note.Token, processed *ProcessedSet) *Scanner {
	return &Scanner{
		Chain:           adapter,
		Pool:            pool,
		Owner:           owner,
		Token:           token,
		Limiter:         NewPollLimiter(MinPollInterval),
		processed:       processed,
		MaxWindow:       defaultMaxWindow,
		InitialLookback: defaultInitialLookback,
	}
}

// Tick runs one scan pass, returning the notes newly discovered this pass.
// A concurrent Tick call that finds one already in flight is dropped (not
// queued), mirroring the at-most-one-poll-in-flight rule of §4.6.
func (s *Scanner) Tick(ctx context.Context) ([]DiscoveredNote, error) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return nil, nil
	}
	s.scanning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	if !s.Limiter.Allow() {
		return nil, walleterr.New(walleterr.RateLimited, "scan poll called before minimum interval elapsed")
	}

	height, err := s.Chain.BlockNumber(ctx)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "fetch block number", err)
	}

	s.mu.Lock()
	from := s.cursor
	if !s.cursorReady {
		lookback := s.InitialLookback
		if lookback == 0 {
			lookback = defaultInitialLookback
		}
		if height > lookback {
			from = height - lookback
		} else {
			from = 0
		}
		s.cursorReady = true
	}
	s.mu.Unlock()

	if height < from {
		return nil, nil
	}
	to := height
	window := s.MaxWindow
	if window == 0 {
		window = defaultMaxWindow
	}
	if to-from > window {
		to = from + window
	}

	logs, err := s.Chain.GetLogs(ctx, chain.LogQuery{
		Address:   s.Pool,
		Topics:    [][]common.Hash{{chain.TransferEventTopic}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "fetch transfer logs", err)
	}

	var discovered []DiscoveredNote
	for _, l := range logs {
		ev, err := chain.ParseTransferEvent(l)
		if err != nil {
			continue
		}
		if n := s.tryOutput(ev, ev.OutputCommitment1, ev.LeafIndex1, ev.EncryptedMemo1); n != nil {
			discovered = append(discovered, DiscoveredNote{Note: n, TxHash: ev.TxHash})
		}
		if n := s.tryOutput(ev, ev.OutputCommitment2, ev.LeafIndex2, ev.EncryptedMemo2); n != nil {
			discovered = append(discovered, DiscoveredNote{Note: n, TxHash: ev.TxHash})
		}
	}

	s.mu.Lock()
	s.cursor = to
	s.mu.Unlock()
	return discovered, nil
}

func (s *Scanner) tryOutput(ev chain.TransferEvent, commitment field.Scalar, leafIndex uint64, encMemo []byte) *note.Note {
	dedupKey := ev.TxHash.Hex() + ":" + commitment.Hex()
	if s.processed.Has(dedupKey) {
		return nil
	}
	m, err := DecodeMemo(encMemo)
	if err != nil {
		return nil
	}
	payload, ok := Decrypt(s.Owner, m)
	if !ok {
		return nil
	}
	n, err := note.Reconstruct(payload.Amount, s.Owner, payload.Secret, payload.Blinding, commitment, s.Token)
	if err != nil {
		// decrypted cleanly but the commitment doesn't match: a false
		// positive from a memo meant for someone else, discard silently.
		return nil
	}
	idx := leafIndex
	n.LeafIndex = &idx
	// mark-before-return: once observed, never re-surfaced even if the
	// caller never gets to append it to the wallet's note set.
	_ = s.processed.Add(dedupKey)
	return n
}

// Cursor reports the last block height this scanner has fully processed.
func (s *Scanner) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
