package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRequiresCredentials(t *testing.T) {
	c := NewClient()

	_, err := c.Login(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = c.Login(context.Background(), "trader@example.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoginReadsSessionCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "trader@example.com", body.Identifier)
		assert.Equal(t, "secret", body.Password)

		http.SetCookie(w, &http.Cookie{Name: "flavor", Value: "plain"})
		http.SetCookie(w, &http.Cookie{Name: "ssid", Value: "session-token-123"})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClientWithConfig(Config{LoginURL: server.URL})
	ssid, err := c.Login(context.Background(), "trader@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "session-token-123", ssid)
}

func TestLoginWithoutCookieFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClientWithConfig(Config{LoginURL: server.URL})
	_, err := c.Login(context.Background(), "trader@example.com", "wrong")
	assert.ErrorIs(t, err, ErrNoSessionCookie)
}
