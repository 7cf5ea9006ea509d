package polls

import (
	"time"
)

// Table names shared by the postgres store and its tests.
const (
	PollsTableName    = "polls"
	OptionsTableName  = "poll_option"
	MentionsTableName = "mentions"
	VotesTableName    = "votes"
	OverviewTableName = "poll_overview"
)

// QualifiedID identifies a user (or bot) across federated backends.
type QualifiedID struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// Mention marks a span of a text that references a user.
// Offset and Length are counted in UTF-16 code units.
type Mention struct {
	User   QualifiedID `json:"user"`
	Offset int         `json:"offset"`
	Length int         `json:"length"`
}

// Shift moves the mention by delta code units.
func (m Mention) Shift(delta int) Mention {
	m.Offset += delta
	return m
}

// Text is a message body together with the mentions that point into it.
type Text struct {
	Body     string    `json:"body"`
	Mentions []Mention `json:"mentions,omitempty"`
}

// ShiftedMentions returns a copy of the mentions moved by delta code units.
func (t Text) ShiftedMentions(delta int) []Mention {
	if len(t.Mentions) == 0 {
		return nil
	}
	out := make([]Mention, len(t.Mentions))
	for i, m := range t.Mentions {
		out[i] = m.Shift(delta)
	}
	return out
}

// Poll is keyed by the gateway message id of the poll message.
type Poll struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Author         QualifiedID `json:"author"`
	Question       Text        `json:"question"`
	Options        []Option    `json:"options"`
	CreatedAt      time.Time   `json:"created_at"`
	Active         bool        `json:"active"`
}

// Option ordinal is its position in the poll and doubles as the button id.
type Option struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Vote is unique per (PollID, User.ID); a repeated vote replaces the option.
type Vote struct {
	PollID string      `json:"poll_id"`
	User   QualifiedID `json:"user"`
	Option int         `json:"option"`
}

// Overview is the single mutable progress/results message of a poll.
type Overview struct {
	PollID         string          `json:"poll_id"`
	Message        OverviewMessage `json:"-"`
	ResultsVisible bool            `json:"results_visible"`
}

// OverviewMessage is either NotSent or Sent.
type OverviewMessage interface {
	overviewMessage()
}

// NotSent means no overview message exists in the conversation yet.
type NotSent struct{}

// Sent carries the id returned by the most recent send or edit.
type Sent struct {
	MessageID string
}

func (NotSent) overviewMessage() {}
func (Sent) overviewMessage()    {}

// OverviewFromID maps a nullable column value onto the sum type.
func OverviewFromID(id *string) OverviewMessage {
	if id == nil || *id == "" {
		return NotSent{}
	}
	return Sent{MessageID: *id}
}

// ParsedPoll is a well-formed /poll command.
// Question mentions are already relative to Question.Body.
type ParsedPoll struct {
	Question Text
	Options  []string
}

// NewPoll is everything the store needs to persist a freshly sent poll.
type NewPoll struct {
	MessageID      string
	ConversationID string
	Author         QualifiedID
	Question       Text
	Options        []string
}

// PollQuestion is the read projection used to render a poll.
type PollQuestion struct {
	PollID   string
	Question Text
	Options  []Option
}

// OptionCount is an option with the number of votes it holds.
type OptionCount struct {
	Option
	Votes int
}

// PendingOverview is a poll whose overview has not been delivered yet.
type PendingOverview struct {
	PollID         string
	ConversationID string
	CreatedAt      time.Time
}

// TextLength returns the length of s in UTF-16 code units.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
