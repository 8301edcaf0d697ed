package wallet

import (
	"context"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/memo"
)

// ScanEvents runs one transfer-discovery poll and folds any newly
// decrypted notes into the wallet's note set, persisting the result. The
// scanner's own dedup set makes repeated calls over overlapping block
// ranges idempotent (§4.6, §8).
func (s *Service) ScanEvents(ctx context.Context) ([]memo.DiscoveredNote, error) {
	discovered, err := s.scanner.Tick(ctx)
	if err != nil {
		return nil, err
	}
	if len(discovered) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range discovered {
		already := false
		for _, existing := range s.notes {
			if existing.Commitment.Equal(d.Note.Commitment) {
				already = true
				break
			}
		}
		if !already {
			s.notes = append(s.notes, d.Note)
		}
	}
	if err := s.persistNotes(); err != nil {
		return nil, err
	}
	s.logger.Audit("notes_discovered", map[string]interface{}{"count": len(discovered)})
	return discovered, nil
}

// WatchUnshields runs one unshield-watcher poll, invoking onEvent exactly
// once per newly observed event addressed to this wallet's connected
// public address (§4.6, final paragraph).
func (s *Service) WatchUnshields(ctx context.Context, onEvent func(chain.UnshieldEvent)) error {
	return s.unshieldWatcher.Tick(ctx, onEvent)
}
