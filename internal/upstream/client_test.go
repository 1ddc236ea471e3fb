package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientForwardsTokenAndQuery(t *testing.T) {
	var gotAuth, gotPath, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", time.Second)
	raw, err := c.ListSuggestions(WithToken(context.Background(), "tok"), 20)

	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(raw))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/connections/suggestions", gotPath)
	assert.Equal(t, "20", gotLimit)
}

func TestClientSendsJSONBody(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"_id":"r1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SendRequest(context.Background(), "u2", "connect")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"recipientId": "u2", "type": "connect"}, body)
}

func TestClientErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{name: "conflict passes through", status: http.StatusConflict, want: http.StatusConflict},
		{name: "not found passes through", status: http.StatusNotFound, want: http.StatusNotFound},
		{name: "server error is bad gateway", status: http.StatusInternalServerError, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).ListConnections(context.Background())

			var upErr *Error
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, tt.status, upErr.Status)
			assert.Equal(t, tt.want, upErr.StatusCode())
			assert.Contains(t, upErr.Body, "nope")
		})
	}
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, time.Second).ListConnections(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
