package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/config"
)

// Verifier checks a challenge token solved by the client.
type Verifier interface {
	Verify(ctx context.Context, token string, remoteIP string) (bool, error)
}

// Turnstile verifies tokens against the Cloudflare siteverify endpoint.
type Turnstile struct {
	httpClient *http.Client
	secret     string
	verifyURL  string
	logger     zerolog.Logger
}

func NewTurnstile(cfg config.CaptchaConfig, logger zerolog.Logger) *Turnstile {
	return &Turnstile{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		secret:     cfg.Secret,
		verifyURL:  cfg.VerifyURL,
		logger:     logger,
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns false without a round trip for a blank token. A transport
// failure or a non 200 answer is returned as an error.
func (t *Turnstile) Verify(ctx context.Context, token string, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify: unexpected status %d", resp.StatusCode)
	}

	var outcome siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}
	if !outcome.Success {
		t.logger.Debug().Strs("error_codes", outcome.ErrorCodes).Msg("captcha rejected")
	}
	return outcome.Success, nil
}

// Disabled accepts every request. Used when captcha is switched off.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) (bool, error) {
	return true, nil
}
