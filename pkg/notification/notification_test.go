package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Notify_SendsJSONPayload(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	err := n.Notify(context.Background(), Payload{RunID: "run-1", Status: StatusSuccess, WarningCount: 2})

	require.NoError(t, err)
	assert.Equal(t, "run-1", received.RunID)
	assert.Equal(t, StatusSuccess, received.Status)
	assert.Equal(t, 2, received.WarningCount)
}

func TestWebhookNotifier_Notify_ErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	err := n.Notify(context.Background(), Payload{RunID: "run-1", Status: StatusFailed})
	assert.Error(t, err)
}
