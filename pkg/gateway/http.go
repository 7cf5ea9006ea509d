package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/retry"
	"go.uber.org/zap"
)

// HTTPClient is a Gateway backed by the messaging proxy's JSON API, with a token bucket
// in front of every request.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
	lookup  retry.Config

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Int64 // unix nanos
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RPS        int
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Lookup is the retry policy of member lookups. Sends and edits are never retried.
	Lookup *retry.Config
}

// StatusError is a non-2xx reply of the proxy.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("gateway http %d", e.Code) }

var errEmptyMessageID = errors.New("reply carries no message id")

// NewHTTPClient creates a new HTTPClient with the given options.
func NewHTTPClient(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	lookup := retry.LookupConfig()
	if o.Lookup != nil {
		lookup = *o.Lookup
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(o.BaseURL, "/"),
		token:       o.Token,
		client:      client,
		logger:      o.Logger.With(zap.String("component", "gateway_http")),
		lookup:      lookup,
		maxTokens:   int64(o.Burst),
		refillEvery: time.Second / time.Duration(o.RPS),
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now().UnixNano())
	return c
}

// refill adds one token per elapsed interval. Only the caller that wins the
// CAS on lastRefill adds it.
func (c *HTTPClient) refill() {
	last := c.lastRefill.Load()
	now := time.Now().UnixNano()
	if time.Duration(now-last) < c.refillEvery {
		return
	}
	if !c.lastRefill.CompareAndSwap(last, now) {
		return
	}
	if atomic.LoadInt64(&c.tokens) < c.maxTokens {
		atomic.AddInt64(&c.tokens, 1)
	}
}

// acquire takes a token from the bucket, waiting until one is free or ctx ends.
func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		c.refill()
		if atomic.AddInt64(&c.tokens, -1) >= 0 {
			return nil
		}
		atomic.AddInt64(&c.tokens, 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

type buttonPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type messagePayload struct {
	Type               string               `json:"type"`
	Text               string               `json:"text,omitempty"`
	Mentions           []pollmodels.Mention `json:"mentions,omitempty"`
	Buttons            []buttonPayload      `json:"buttons"`
	ReferenceMessageID string               `json:"reference_message_id,omitempty"`
	ButtonID           string               `json:"button_id,omitempty"`
}

type messageReply struct {
	MessageID string `json:"message_id"`
}

type membersReply struct {
	Members []pollmodels.QualifiedID `json:"members"`
}

func toPayload(content Content) (messagePayload, error) {
	switch v := content.(type) {
	case TextContent:
		return messagePayload{Type: v.Kind(), Text: v.Text.Body, Mentions: v.Text.Mentions}, nil
	case CompositeContent:
		buttons := make([]buttonPayload, len(v.Buttons))
		for i, b := range v.Buttons {
			buttons[i] = buttonPayload(b)
		}
		return messagePayload{Type: v.Kind(), Text: v.Text.Body, Mentions: v.Text.Mentions, Buttons: buttons}, nil
	case ButtonConfirmation:
		return messagePayload{Type: v.Kind(), ReferenceMessageID: v.ReferenceMessageID, ButtonID: v.ButtonID}, nil
	default:
		return messagePayload{}, fmt.Errorf("unsupported content %T", content)
	}
}

// Send posts a new message to the conversation.
func (c *HTTPClient) Send(ctx context.Context, conversationID string, content Content) (string, error) {
	payload, err := toPayload(content)
	if err != nil {
		return "", err
	}

	var reply messageReply
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &reply); err != nil {
		return "", fmt.Errorf("send %s to %s: %w", content.Kind(), conversationID, err)
	}
	if reply.MessageID == "" {
		return "", fmt.Errorf("send %s to %s: %w", content.Kind(), conversationID, errEmptyMessageID)
	}
	return reply.MessageID, nil
}

// Edit replaces originalMessageID and returns the id of the new revision.
func (c *HTTPClient) Edit(ctx context.Context, conversationID, originalMessageID string, content Content) (string, error) {
	payload, err := toPayload(content)
	if err != nil {
		return "", err
	}

	var reply messageReply
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages/" + url.PathEscape(originalMessageID) + "/edit"
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &reply); err != nil {
		return "", fmt.Errorf("edit %s in %s: %w", originalMessageID, conversationID, err)
	}
	if reply.MessageID == "" {
		return originalMessageID, nil
	}
	return reply.MessageID, nil
}

// ConversationMemberCount lists the members of the conversation. Transient failures are retried.
func (c *HTTPClient) ConversationMemberCount(ctx context.Context, conversationID string) (int, error) {
	var reply membersReply
	path := "/conversations/" + url.PathEscape(conversationID) + "/members"
	err := retry.WithBackoff(ctx, c.lookup, c.logger, "conversation_members", func() error {
		err := c.doJSON(ctx, http.MethodGet, path, nil, &reply)
		var status *StatusError
		if errors.Is(err, ErrEntityNotFound) || (errors.As(err, &status) && status.Code < 500) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("members of %s: %w", conversationID, err)
	}
	return len(reply.Members), nil
}

// doJSON sends the request and decodes a 2xx reply into out.
// 404 maps to ErrEntityNotFound, other non-2xx replies to *StatusError.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if c.baseURL == "" {
		return errors.New("no gateway url configured")
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrEntityNotFound
	case resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}

// drainAndClose lets the transport reuse the connection.
func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	_ = rc.Close()
}
