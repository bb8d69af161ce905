// Package mail delivers account emails through the Mailgun HTTP API.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the Mailgun messages API root.
	DefaultAPIBase = "https://api.mailgun.net/v3"

	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second
)

// ErrDeliveryFailed indicates Mailgun rejected the message or was unreachable.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Mailgun sends activation emails. It implements the notifier contract the
// registration orchestrator depends on.
type Mailgun struct {
	client  *http.Client
	logger  *slog.Logger
	apiBase string
	apiKey  string
	domain  string
	baseURL string
}

// NewMailgun creates a Mailgun notifier.
// baseURL is the public base URL activation links are built from.
func NewMailgun(apiKey, domain, baseURL string, logger *slog.Logger) *Mailgun {
	return &Mailgun{
		client:  newHTTPClient(),
		logger:  logger.With("component", "mail.mailgun"),
		apiBase: DefaultAPIBase,
		apiKey:  apiKey,
		domain:  domain,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// SetAPIBase overrides the Mailgun API root. Used by tests.
func (m *Mailgun) SetAPIBase(apiBase string) {
	m.apiBase = strings.TrimSuffix(apiBase, "/")
}

// Send delivers the activation email for the given token.
// Any transport failure or non-2xx response maps to ErrDeliveryFailed; the
// caller decides whether the registration survives the failure.
func (m *Mailgun) Send(ctx context.Context, email, token string) error {
	link := m.ActivationLink(token)

	form := url.Values{}
	form.Set("from", fmt.Sprintf("Gatehouse <mailgun@%s>", m.domain))
	form.Set("to", email)
	form.Set("subject", "Account Activation")
	form.Set("html", activationBody(link))

	endpoint := fmt.Sprintf("%s/%s/messages", m.apiBase, m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Gatehouse-Mailer/1.0")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("mailgun request failed", "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		m.logger.Warn("mailgun rejected message",
			"http_status", resp.StatusCode,
			"response", string(body),
		)
		return fmt.Errorf("%w: HTTP %d", ErrDeliveryFailed, resp.StatusCode)
	}

	m.logger.Info("activation email sent",
		"to", email,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ActivationLink builds the public activation link for a token.
func (m *Mailgun) ActivationLink(token string) string {
	return fmt.Sprintf("%s/activate?token=%s", m.baseURL, url.QueryEscape(token))
}

func activationBody(link string) string {
	return fmt.Sprintf(`
        <html>
            <body>
                <h1>Welcome to Gatehouse!</h1>
                <p>Please follow the link to activate your account:</p>
                <a href=%q>Activate your account</a>
                <p>This link is valid for 24 hours.</p>
            </body>
        </html>
        `, link)
}

// newHTTPClient creates an HTTP client configured for outbound mail delivery.
// It has appropriate timeouts and does not follow redirects.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
