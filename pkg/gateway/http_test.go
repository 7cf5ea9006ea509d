package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type proxy struct {
	t           *testing.T
	sent        []messagePayload
	edited      []string
	memberCalls atomic.Int32
	memberFails int32
}

func (p *proxy) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/conversations/{c}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(p.t, "Bearer secret", r.Header.Get("Authorization"))
		switch mux.Vars(r)["c"] {
		case "gone":
			http.NotFound(w, r)
			return
		case "mute":
			_, _ = w.Write([]byte(`{}`))
			return
		}
		var payload messagePayload
		assert.NoError(p.t, json.NewDecoder(r.Body).Decode(&payload))
		p.sent = append(p.sent, payload)
		_ = json.NewEncoder(w).Encode(messageReply{MessageID: "m-1"})
	}).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{c}/messages/{m}/edit", func(w http.ResponseWriter, r *http.Request) {
		p.edited = append(p.edited, mux.Vars(r)["m"])
		_ = json.NewEncoder(w).Encode(messageReply{MessageID: mux.Vars(r)["m"] + "-v2"})
	}).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{c}/members", func(w http.ResponseWriter, r *http.Request) {
		call := p.memberCalls.Add(1)
		switch {
		case mux.Vars(r)["c"] == "gone":
			http.NotFound(w, r)
		case mux.Vars(r)["c"] == "forbidden":
			w.WriteHeader(http.StatusForbidden)
		case call <= p.memberFails:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(membersReply{Members: []pollmodels.QualifiedID{{ID: "a"}, {ID: "b"}, {ID: "c"}}})
		}
	}).Methods(http.MethodGet)
	return r
}

func newTestClient(t *testing.T, p *proxy) *HTTPClient {
	srv := httptest.NewServer(p.router())
	t.Cleanup(srv.Close)
	lookup := retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return NewHTTPClient(Opts{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		Logger:  zaptest.NewLogger(t),
		Lookup:  &lookup,
		RPS:     1000,
	})
}

func TestHTTPSendComposite(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	id, err := client.Send(context.Background(), "conv", CompositeContent{
		Text:    pollmodels.Text{Body: "Pizza?"},
		Buttons: []Button{{ID: "0", Text: "Yes"}, {ID: "1", Text: "No"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)

	require.Len(t, p.sent, 1)
	assert.Equal(t, "composite", p.sent[0].Type)
	assert.Equal(t, "Pizza?", p.sent[0].Text)
	assert.Equal(t, []buttonPayload{{ID: "0", Text: "Yes"}, {ID: "1", Text: "No"}}, p.sent[0].Buttons)
}

func TestHTTPSendConfirmation(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	_, err := client.Send(context.Background(), "conv", ButtonConfirmation{ReferenceMessageID: "poll", ButtonID: "1"})
	require.NoError(t, err)
	require.Len(t, p.sent, 1)
	assert.Equal(t, "button_confirmation", p.sent[0].Type)
	assert.Equal(t, "poll", p.sent[0].ReferenceMessageID)
	assert.Equal(t, "1", p.sent[0].ButtonID)
}

func TestHTTPEditReturnsNewID(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	id, err := client.Edit(context.Background(), "conv", "ov-1", Text("50%"))
	require.NoError(t, err)
	assert.Equal(t, "ov-1-v2", id)
	assert.Equal(t, []string{"ov-1"}, p.edited)
}

func TestHTTPNotFound(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	_, err := client.Send(context.Background(), "gone", Text("hi"))
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = client.ConversationMemberCount(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Equal(t, int32(1), p.memberCalls.Load())
}

func TestHTTPMemberCountRetriesServerErrors(t *testing.T) {
	p := &proxy{t: t, memberFails: 2}
	client := newTestClient(t, p)

	n, err := client.ConversationMemberCount(context.Background(), "conv")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), p.memberCalls.Load())
}

func TestHTTPMemberCountDoesNotRetryClientErrors(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	_, err := client.ConversationMemberCount(context.Background(), "forbidden")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusForbidden, status.Code)
	assert.Equal(t, int32(1), p.memberCalls.Load())
}

func TestHTTPWithoutURL(t *testing.T) {
	client := NewHTTPClient(Opts{})
	_, err := client.Send(context.Background(), "conv", Text("hi"))
	assert.Error(t, err)
}

func TestHTTPSendWithoutMessageID(t *testing.T) {
	p := &proxy{t: t}
	client := newTestClient(t, p)

	id, err := client.Send(context.Background(), "mute", Text("hi"))
	require.ErrorIs(t, err, errEmptyMessageID)
	assert.Empty(t, id)
}

func TestRefillAddsOneTokenPerInterval(t *testing.T) {
	client := NewHTTPClient(Opts{RPS: 1, Burst: 10})
	client.tokens = 0
	client.lastRefill.Store(time.Now().Add(-2 * time.Second).UnixNano())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.refill()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&client.tokens))
}
