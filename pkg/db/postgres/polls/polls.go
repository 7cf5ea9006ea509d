package polls

import (
	"context"
	"fmt"
	"time"

	pollstore "github.com/groupchat/pollbot/pkg/db"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
)

func (db *DB) initPolls(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS polls (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_domain TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)
	`

	return db.Exec(ctx, query)
}

func (db *DB) initOptions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS poll_option (
			poll_id TEXT NOT NULL REFERENCES polls(id),
			ordinal INTEGER NOT NULL CHECK (ordinal >= 0),
			option_text TEXT NOT NULL,
			PRIMARY KEY (poll_id, ordinal)
		)
	`

	return db.Exec(ctx, query)
}

func (db *DB) initMentions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS mentions (
			id BIGSERIAL PRIMARY KEY,
			poll_id TEXT NOT NULL REFERENCES polls(id),
			user_id TEXT NOT NULL,
			user_domain TEXT NOT NULL DEFAULT '',
			offset_shift INTEGER NOT NULL,
			length INTEGER NOT NULL
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}

	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS mentions_poll_id_idx ON mentions (poll_id)`)
}

// SavePoll inserts the poll, its overview row, options and mentions in one transaction.
func (db *DB) SavePoll(ctx context.Context, poll pollmodels.NewPoll) (string, error) {
	err := db.BeginFunc(ctx, func(ctx context.Context, tx pgx.Tx) error {
		insertPoll := `
			INSERT INTO polls (id, conversation_id, author_id, author_domain, question, created_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		`
		if err := db.Exec(ctx, insertPoll,
			poll.MessageID,
			poll.ConversationID,
			poll.Author.ID,
			poll.Author.Domain,
			poll.Question.Body,
			time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("insert poll: %w", err)
		}

		if err := db.Exec(ctx, `INSERT INTO poll_overview (poll_id) VALUES ($1)`, poll.MessageID); err != nil {
			return fmt.Errorf("insert overview: %w", err)
		}

		batch := &pgx.Batch{}
		for i, text := range poll.Options {
			batch.Queue(`INSERT INTO poll_option (poll_id, ordinal, option_text) VALUES ($1, $2, $3)`,
				poll.MessageID, i, text)
		}
		for _, m := range poll.Question.Mentions {
			batch.Queue(`INSERT INTO mentions (poll_id, user_id, user_domain, offset_shift, length) VALUES ($1, $2, $3, $4, $5)`,
				poll.MessageID, m.User.ID, m.User.Domain, m.Offset, m.Length)
		}

		results := db.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert poll children: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return "", err
	}

	return poll.MessageID, nil
}

// DeactivatePoll takes the poll out of the pending-overview resync.
func (db *DB) DeactivatePoll(ctx context.Context, pollID string) error {
	n, err := db.ExecRows(ctx, `UPDATE polls SET is_active = FALSE WHERE id = $1`, pollID)
	if err != nil {
		return fmt.Errorf("deactivate poll %s: %w", pollID, err)
	}
	if n == 0 {
		return fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
	}
	return nil
}

// IsPollMessage reports whether messageID is the message of a stored poll.
func (db *DB) IsPollMessage(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM polls WHERE id = $1)`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query poll message %s: %w", messageID, err)
	}
	return exists, nil
}

// PollQuestionAndOptions returns the question, its mentions and the options by ordinal.
func (db *DB) PollQuestionAndOptions(ctx context.Context, pollID string) (*pollmodels.PollQuestion, error) {
	result := pollmodels.PollQuestion{PollID: pollID}

	err := db.QueryRow(ctx, `SELECT question FROM polls WHERE id = $1`, pollID).Scan(&result.Question.Body)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("poll %s: %w", pollID, pollstore.ErrPollNotFound)
		}
		return nil, fmt.Errorf("query poll %s: %w", pollID, err)
	}

	mentionRows, err := db.Query(ctx, `
		SELECT user_id, user_domain, offset_shift, length
		FROM mentions
		WHERE poll_id = $1
		ORDER BY offset_shift, id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query mentions of %s: %w", pollID, err)
	}
	result.Question.Mentions, err = pgx.CollectRows(mentionRows, func(row pgx.CollectableRow) (pollmodels.Mention, error) {
		var m pollmodels.Mention
		err := row.Scan(&m.User.ID, &m.User.Domain, &m.Offset, &m.Length)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan mentions of %s: %w", pollID, err)
	}
	if len(result.Question.Mentions) == 0 {
		result.Question.Mentions = nil
	}

	optionRows, err := db.Query(ctx, `
		SELECT ordinal, option_text
		FROM poll_option
		WHERE poll_id = $1
		ORDER BY ordinal
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query options of %s: %w", pollID, err)
	}
	result.Options, err = pgx.CollectRows(optionRows, func(row pgx.CollectableRow) (pollmodels.Option, error) {
		var o pollmodels.Option
		err := row.Scan(&o.Ordinal, &o.Text)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan options of %s: %w", pollID, err)
	}

	return &result, nil
}

// PendingOverviews returns active polls older than olderThan whose overview was never delivered.
func (db *DB) PendingOverviews(ctx context.Context, olderThan time.Time, limit int) ([]pollmodels.PendingOverview, error) {
	rows, err := db.Query(ctx, `
		SELECT p.id, p.conversation_id, p.created_at
		FROM polls p
		JOIN poll_overview ov ON ov.poll_id = p.id
		WHERE ov.message_id IS NULL
		  AND p.is_active
		  AND p.created_at < $1
		ORDER BY p.created_at
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending overviews: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (pollmodels.PendingOverview, error) {
		var p pollmodels.PendingOverview
		err := row.Scan(&p.PollID, &p.ConversationID, &p.CreatedAt)
		return p, err
	})
}

var _ pollstore.PollStore = (*DB)(nil)
