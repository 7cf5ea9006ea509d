package polls

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ResyncPending refreshes polls created before olderThan whose overview never
// reached the conversation. It returns how many overviews were delivered. Polls
// whose conversation is gone are deactivated and not listed again.
func (s *Service) ResyncPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := s.store.PendingOverviews(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending overviews: %w", err)
	}

	refreshed := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		outcome, err := s.refresh(ctx, p.ConversationID, p.PollID)
		if err != nil {
			s.logger.Error("Overview resync failed", zap.String("poll_id", p.PollID), zap.Error(err))
			continue
		}
		if outcome == overviewWritten {
			refreshed++
		}
	}
	return refreshed, nil
}
