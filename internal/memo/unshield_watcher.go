package memo

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// UnshieldWatcher polls for unshield events addressed to one recipient
// address, invoking a callback exactly once per event (§4.6, final
// paragraph). Grounded the same way as Scanner — adapted from the
// obsidian-core ShieldedPool's nullifier-presence tracking
// (other_examples/...blockchain-shielded_pool.go's HasNullifier) into an
// event-driven watcher over internal/chain.Adapter.
type UnshieldWatcher struct {
	Chain     chain.Adapter
	Pool      common.Address
	Recipient common.Address
	Limiter   *PollLimiter

	processed *ProcessedSet

	cursor      uint64
	cursorReady bool

	MaxWindow       uint64
	InitialLookback uint64
}

// NewUnshieldWatcher constructs a watcher for events addressed to
// recipient, persisting its dedup set under processed.
func NewUnshieldWatcher(adapter chain.Adapter, pool common.Address, recipient common.Address, processed *ProcessedSet) *UnshieldWatcher {
	return &UnshieldWatcher{
		Chain:           adapter,
		Pool:            pool,
		Recipient:       recipient,
		Limiter:         NewPollLimiter(MinPollInterval),
		processed:       processed,
		MaxWindow:       defaultMaxWindow,
		InitialLookback: defaultInitialLookback,
	}
}

// Tick runs one poll pass, calling onEvent exactly once for each newly
// observed, unprocessed unshield event addressed to Recipient. An event
// is marked processed before onEvent runs, so a panic or error inside
// onEvent cannot cause the same event to be redelivered on the next tick.
func (w *UnshieldWatcher) Tick(ctx context.Context, onEvent func(chain.UnshieldEvent)) error {
	if !w.Limiter.Allow() {
		return walleterr.New(walleterr.RateLimited, "unshield watch called before minimum interval elapsed")
	}

	height, err := w.Chain.BlockNumber(ctx)
	if err != nil {
		return walleterr.Wrap(walleterr.NetworkUnavailable, "fetch block number", err)
	}

	from := w.cursor
	if !w.cursorReady {
		lookback := w.InitialLookback
		if lookback == 0 {
			lookback = defaultInitialLookback
		}
		if height > lookback {
			from = height - lookback
		} else {
			from = 0
		}
		w.cursorReady = true
	}
	if height < from {
		return nil
	}
	to := height
	window := w.MaxWindow
	if window == 0 {
		window = defaultMaxWindow
	}
	if to-from > window {
		to = from + window
	}

	recipientTopic := common.BytesToHash(common.LeftPadBytes(w.Recipient.Bytes(), 32))
	logs, err := w.Chain.GetLogs(ctx, chain.LogQuery{
		Address:   w.Pool,
		Topics:    [][]common.Hash{nil, nil, {recipientTopic}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		return walleterr.Wrap(walleterr.NetworkUnavailable, "fetch unshield logs", err)
	}

	for _, l := range logs {
		if l.Address != w.Pool {
			continue
		}
		ev, err := chain.ParseUnshieldEvent(l)
		if err != nil {
			continue
		}
		if ev.Recipient != w.Recipient {
			continue
		}
		key := ev.TxHash.Hex() + ":" + ev.NullifierHash.Hex()
		if w.processed.Has(key) {
			continue
		}
		if err := w.processed.Add(key); err != nil {
			continue
		}
		onEvent(ev)
	}

	w.cursor = to
	return nil
}
