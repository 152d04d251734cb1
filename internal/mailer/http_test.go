package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Send(t *testing.T) {
	var got sendPayload
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, "key-123", "noreply@orgbase.dev", 2000)
	err := sender.Send(context.Background(), "jo@example.com", "You're invited", "Join us")
	require.NoError(t, err)

	require.Equal(t, "Bearer key-123", gotAuth)
	require.Equal(t, "noreply@orgbase.dev", got.From)
	require.Equal(t, "jo@example.com", got.To)
	require.Equal(t, "You're invited", got.Subject)
	require.Equal(t, "Join us", got.Body)
}

func TestHTTPSender_Send_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, "", "noreply@orgbase.dev", 2000)
	err := sender.Send(context.Background(), "jo@example.com", "subject", "body")
	require.Error(t, err)
}
