package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/config"
)

func TestSendPasswordReset(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"succeeded":1}}`))
	}))
	defer srv.Close()

	m := NewSMTP2GO(config.MailConfig{
		APIKey:          "api-key",
		Sender:          "Device Galaxy <noreply@example.com>",
		ResetTemplateID: "tpl-1",
		Endpoint:        srv.URL,
	}, zerolog.Nop())

	err := m.SendPasswordReset(context.Background(), "user@example.com", "https://example.com/reset?token=abc")
	require.NoError(t, err)

	assert.Equal(t, "api-key", got.APIKey)
	assert.Equal(t, []string{"user@example.com"}, got.To)
	assert.Equal(t, "tpl-1", got.TemplateID)
	assert.Equal(t, "https://example.com/reset?token=abc", got.TemplateData["reset_link"])
}

func TestSendPasswordResetUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewSMTP2GO(config.MailConfig{Endpoint: srv.URL}, zerolog.Nop())
	err := m.SendPasswordReset(context.Background(), "user@example.com", "link")
	assert.Error(t, err)
}

func TestSendAsyncLogsFailure(t *testing.T) {
	done := make(chan struct{})
	SendAsync(zerolog.Nop(), func(ctx context.Context) error {
		defer close(done)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return assert.AnError
	})
	<-done
}
