package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", 5*time.Second, staticToken("tok"), nil)
}

func TestAuthenticatedCallWithoutTokenFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c := New(srv.URL, time.Second, staticToken(""), nil)
	_, err := c.ListChats(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, called, "no request should reach the server")
}

func TestBearerHeaderAndEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/chats/c1/messages", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"m1","content":"hi","createdAt":"2026-01-01T10:00:00Z","sender":"u2"}]}`))
	})

	msgs, err := c.Messages(context.Background(), "c1", 2, 30)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "c1", msgs[0].ChatID, "chat id filled from the request")
	assert.Equal(t, "u2", msgs[0].Sender.ID)
	assert.Equal(t, domain.StatusSent, msgs[0].Status)
}

func TestServerRejectionCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Event is sold out"}`))
	})

	_, err := c.CreatePaymentIntent(context.Background(), ProductTicket, "e1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Event is sold out", UserMessage(err))
	assert.False(t, Retryable(err))
}

func TestUnauthorizedMatchesSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, loginRequiredMessage, UserMessage(err))
}

func TestNetworkErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, staticToken("tok"), nil)
	err := c.MarkRead(context.Background(), "c1")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, Retryable(err))
	assert.Equal(t, genericNetworkMessage, UserMessage(err))
}

func TestSendMessagePostsDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats/c1/messages", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, "text", body["messageType"])
		assert.Equal(t, "tmp-1", body["clientId"])
		_, _ = w.Write([]byte(`{"_id":"m2","chat":"c1","content":"hello","createdAt":"2026-01-01T10:00:00Z","clientId":"tmp-1"}`))
	})

	msg, err := c.SendMessage(context.Background(), domain.Draft{ChatID: "c1", Kind: domain.KindText, Content: "hello", ClientID: "tmp-1"})
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
	assert.Equal(t, "tmp-1", msg.ClientID)
}

func TestLoginIsPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"token":"jwt","user":{"_id":"u1","username":"ana"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil, nil)
	sess, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", sess.AuthToken)
	assert.Equal(t, "ana", sess.User.Username)
}

func TestMeAcceptsWrappedUser(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", `{"_id":"u1","username":"ana"}`},
		{"wrapped", `{"user":{"_id":"u1","username":"ana"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			u, err := c.Me(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "u1", u.ID)
			assert.Equal(t, "ana", u.Username)
		})
	}
}

func TestConfirmPurchasePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stripe/confirm/guide/g1", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pi_123", body["paymentIntentId"])
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.ConfirmPurchase(context.Background(), ProductGuide, "g1", "pi_123"))
}

func TestUserMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"api without text", &APIError{Status: 500}, genericServerMessage},
		{"unauthenticated", ErrUnauthenticated, loginRequiredMessage},
		{"deadline", context.DeadlineExceeded, genericNetworkMessage},
		{"other", errors.New("boom"), genericServerMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
