package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"devicegalaxy/internal/config"
)

// Mailer sends transactional mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to string, resetLink string) error
}

// SMTP2GO sends templated mail through the SMTP2GO HTTP API.
type SMTP2GO struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	endpoint        string
	apiKey          string
	sender          string
	resetTemplateID string
	logger          zerolog.Logger
}

func NewSMTP2GO(cfg config.MailConfig, logger zerolog.Logger) *SMTP2GO {
	return &SMTP2GO{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// The free tier allows a handful of sends per second.
		limiter:         rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		endpoint:        cfg.Endpoint,
		apiKey:          cfg.APIKey,
		sender:          cfg.Sender,
		resetTemplateID: cfg.ResetTemplateID,
		logger:          logger,
	}
}

type sendRequest struct {
	APIKey       string         `json:"api_key"`
	Sender       string         `json:"sender"`
	To           []string       `json:"to"`
	TemplateID   string         `json:"template_id"`
	TemplateData map[string]any `json:"template_data"`
}

func (m *SMTP2GO) SendPasswordReset(ctx context.Context, to string, resetLink string) error {
	return m.send(ctx, sendRequest{
		APIKey:     m.apiKey,
		Sender:     m.sender,
		To:         []string{to},
		TemplateID: m.resetTemplateID,
		TemplateData: map[string]any{
			"reset_link": resetLink,
		},
	})
}

func (m *SMTP2GO) send(ctx context.Context, payload sendRequest) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/email/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send mail: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SendAsync delivers in the background and only logs failures, so the
// caller's response never depends on the mail provider.
func SendAsync(logger zerolog.Logger, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.Error().Err(err).Msg("mail delivery failed")
		}
	}()
}
