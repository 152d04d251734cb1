package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPSender posts messages to a JSON transactional-email provider endpoint.
type HTTPSender struct {
	providerURL string
	apiKey      string
	from        string
	httpClient  *http.Client
}

// NewHTTPSender creates a provider client with a bounded timeout.
func NewHTTPSender(providerURL, apiKey, from string, timeoutMS int) *HTTPSender {
	return &HTTPSender{
		providerURL: providerURL,
		apiKey:      apiKey,
		from:        from,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
	}
}

type sendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the message to the provider. Errors are returned to the
// caller, which treats them as non-fatal; the invitation itself is never
// rolled back over a failed email.
func (s *HTTPSender) Send(ctx context.Context, to, subject, body string) error {
	payload := sendPayload{
		From:    s.from,
		To:      to,
		Subject: subject,
		Body:    body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.providerURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("to", to).
			Msg("Failed to send email")
		return fmt.Errorf("email provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("to", to).
			Msg("Email provider returned non-success status")
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}

	log.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("Email sent")
	return nil
}
