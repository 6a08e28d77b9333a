package projection

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"vibehive/contract"
	"vibehive/domain"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ConversationIndex groups the history of a viewer by counterparty.
type ConversationIndex struct {
	log         *slog.Logger
	store       contract.HistoryReader
	concurrency int
}

func NewConversationIndex(log *slog.Logger, store contract.HistoryReader, concurrency int) *ConversationIndex {
	return &ConversationIndex{log: log, store: store, concurrency: concurrency}
}

// ConversationsFor fetches the history between viewer and each candidate,
// at most concurrency queries at a time. Only non-empty conversations are kept.
// Without candidates, every participant viewer has talked to is used.
// The first failing query cancels the others and is returned.
func (c *ConversationIndex) ConversationsFor(ctx context.Context, viewer domain.ParticipantID, candidates []domain.ParticipantID) (map[domain.ParticipantID][]domain.Message, error) {
	if len(candidates) == 0 {
		peers, err := c.store.Counterparties(ctx, viewer)
		if err != nil {
			return nil, err
		}
		candidates = peers
	}
	candidates = lo.Uniq(candidates)

	var mu sync.Mutex
	conversations := make(map[domain.ParticipantID][]domain.Message)

	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for _, candidate := range candidates {
		g.Go(func() error {
			history, err := c.store.History(gctx, viewer, candidate)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return nil
			}
			mu.Lock()
			conversations[candidate] = history
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Error("Conversation fan-out failed", "viewer", viewer.String(), "error", err)
		return nil, err
	}
	c.log.Debug("Conversations loaded", "viewer", viewer.String(), "candidates", len(candidates), "conversations", len(conversations))
	return conversations, nil
}

// Summaries renders the chat list, newest conversation first.
func Summaries(conversations map[domain.ParticipantID][]domain.Message) []domain.ConversationSummary {
	summaries := lo.MapToSlice(conversations, func(peer domain.ParticipantID, history []domain.Message) domain.ConversationSummary {
		return domain.ConversationSummary{Counterparty: peer, Last: history[len(history)-1], Count: len(history)}
	})
	slices.SortFunc(summaries, func(a, b domain.ConversationSummary) int {
		switch {
		case b.Last.Less(a.Last):
			return -1
		case a.Last.Less(b.Last):
			return 1
		default:
			return 0
		}
	})
	return summaries
}
