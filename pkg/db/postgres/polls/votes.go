package polls

import (
	"context"
	"fmt"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initVotes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS votes (
			poll_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_domain TEXT NOT NULL DEFAULT '',
			poll_option INTEGER NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (poll_id, user_id),
			FOREIGN KEY (poll_id, poll_option) REFERENCES poll_option (poll_id, ordinal)
		)
	`

	return db.Exec(ctx, query)
}

// SaveVote records or replaces the user's vote. An unknown poll or ordinal fails
// the foreign key and the *pgconn.PgError is returned as is.
func (db *DB) SaveVote(ctx context.Context, pollID string, user pollmodels.QualifiedID, option int) error {
	query := `
		INSERT INTO votes (poll_id, user_id, user_domain, poll_option, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (poll_id, user_id) DO UPDATE SET
			poll_option = EXCLUDED.poll_option,
			user_domain = EXCLUDED.user_domain,
			updated_at = NOW()
	`

	return db.Exec(ctx, query, pollID, user.ID, user.Domain, option)
}

// VotingUserCount returns the number of distinct voters of the poll.
func (db *DB) VotingUserCount(ctx context.Context, pollID string) (int, error) {
	var count int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count voters of %s: %w", pollID, err)
	}
	return count, nil
}

// VoteCountsByOption returns every option of the poll with its vote count, zero included.
func (db *DB) VoteCountsByOption(ctx context.Context, pollID string) ([]pollmodels.OptionCount, error) {
	rows, err := db.Query(ctx, `
		SELECT o.ordinal, o.option_text, COUNT(v.user_id)
		FROM poll_option o
		LEFT JOIN votes v ON v.poll_id = o.poll_id AND v.poll_option = o.ordinal
		WHERE o.poll_id = $1
		GROUP BY o.ordinal, o.option_text
		ORDER BY o.ordinal
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query vote counts of %s: %w", pollID, err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (pollmodels.OptionCount, error) {
		var c pollmodels.OptionCount
		err := row.Scan(&c.Ordinal, &c.Text, &c.Votes)
		return c, err
	})
}
