package polls_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/groupchat/pollbot/pkg/gateway"
)

type call struct {
	Op             string // send or edit
	ConversationID string
	MessageID      string // edited message
	ReturnedID     string
	Content        gateway.Content
}

// fakeGateway records every call and hands out sequential ids.
type fakeGateway struct {
	mu      sync.Mutex
	next    int
	calls   []call
	members map[string]int
	// conversations the bot was removed from
	gone map[string]bool

	sendErr    error
	editErr    error
	membersErr error
}

func newFakeGateway(members map[string]int) *fakeGateway {
	return &fakeGateway{members: members}
}

func (g *fakeGateway) id() string {
	g.next++
	return fmt.Sprintf("m-%d", g.next)
}

func (g *fakeGateway) Send(_ context.Context, conversationID string, content gateway.Content) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	if g.gone[conversationID] {
		return "", gateway.ErrEntityNotFound
	}
	id := g.id()
	g.calls = append(g.calls, call{Op: "send", ConversationID: conversationID, ReturnedID: id, Content: content})
	return id, nil
}

func (g *fakeGateway) Edit(_ context.Context, conversationID, messageID string, content gateway.Content) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return "", g.editErr
	}
	id := g.id()
	g.calls = append(g.calls, call{Op: "edit", ConversationID: conversationID, MessageID: messageID, ReturnedID: id, Content: content})
	return id, nil
}

func (g *fakeGateway) ConversationMemberCount(_ context.Context, conversationID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.membersErr != nil {
		return 0, g.membersErr
	}
	n, ok := g.members[conversationID]
	if !ok {
		return 0, gateway.ErrEntityNotFound
	}
	return n, nil
}

// last returns the most recent call.
func (g *fakeGateway) last() call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

func (g *fakeGateway) setMembers(conversationID string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[conversationID] = n
}

// edits counts the edit calls.
func (g *fakeGateway) edits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == "edit" {
			n++
		}
	}
	return n
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// texts returns the bodies of plain text messages sent.
func (g *fakeGateway) texts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		if t, ok := c.Content.(gateway.TextContent); ok {
			out = append(out, t.Text.Body)
		}
	}
	return out
}
