package polls

import (
	"context"
	"fmt"

	pollstore "github.com/groupchat/pollbot/pkg/db"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/db/postgres"
)

func (db *DB) initOverview(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS poll_overview (
			poll_id TEXT PRIMARY KEY REFERENCES polls(id),
			message_id TEXT,
			results_visible BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}

	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS poll_overview_message_id_idx ON poll_overview (message_id)`)
}

// SetResultVisibility reveals the results. The flag is only ever set, never cleared.
func (db *DB) SetResultVisibility(ctx context.Context, pollID string) error {
	n, err := db.ExecRows(ctx, `
		UPDATE poll_overview SET results_visible = TRUE, updated_at = NOW()
		WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return fmt.Errorf("set result visibility of %s: %w", pollID, err)
	}
	if n == 0 {
		return fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
	}
	return nil
}

// IsResultVisible reports whether the results of the poll are revealed.
func (db *DB) IsResultVisible(ctx context.Context, pollID string) (bool, error) {
	var visible bool
	err := db.QueryRow(ctx, `SELECT results_visible FROM poll_overview WHERE poll_id = $1`, pollID).Scan(&visible)
	if err != nil {
		if postgres.IsNoRows(err) {
			return false, fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
		}
		return false, fmt.Errorf("query result visibility of %s: %w", pollID, err)
	}
	return visible, nil
}

// OverviewMessage returns the current overview message of the poll.
func (db *DB) OverviewMessage(ctx context.Context, pollID string) (pollmodels.OverviewMessage, error) {
	var messageID *string
	err := db.QueryRow(ctx, `SELECT message_id FROM poll_overview WHERE poll_id = $1`, pollID).Scan(&messageID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
		}
		return nil, fmt.Errorf("query overview of %s: %w", pollID, err)
	}
	return pollmodels.OverviewFromID(messageID), nil
}

// SetOverviewMessageID stores the id returned by the latest send or edit. An empty id marks the overview unsent.
func (db *DB) SetOverviewMessageID(ctx context.Context, pollID, messageID string) error {
	n, err := db.ExecRows(ctx, `
		UPDATE poll_overview SET message_id = NULLIF($2, ''), updated_at = NOW()
		WHERE poll_id = $1
	`, pollID, messageID)
	if err != nil {
		return fmt.Errorf("set overview of %s: %w", pollID, err)
	}
	if n == 0 {
		return fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
	}
	return nil
}

// IsOverviewMessage reports whether messageID is the current overview of any poll.
func (db *DB) IsOverviewMessage(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM poll_overview WHERE message_id = $1)`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query overview message %s: %w", messageID, err)
	}
	return exists, nil
}

// PollIDForOverview maps an overview message back to its poll.
func (db *DB) PollIDForOverview(ctx context.Context, overviewMessageID string) (string, bool, error) {
	var pollID string
	err := db.QueryRow(ctx, `SELECT poll_id FROM poll_overview WHERE message_id = $1 LIMIT 1`, overviewMessageID).Scan(&pollID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query poll of overview %s: %w", overviewMessageID, err)
	}
	return pollID, true, nil
}
