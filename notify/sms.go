package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SMSConfig holds the HTTP SMS gateway configuration. The gateway accepts a
// GET request with the message parameters in the query string and returns a
// non-2xx status on failure.
type SMSConfig struct {
	BaseURL    string `env:"SMS_GATEWAY_URL"`
	Username   string `env:"SMS_GATEWAY_USERNAME"`
	Password   string `env:"SMS_GATEWAY_PASSWORD"`
	From       string `env:"SMS_GATEWAY_FROM"`
	EntityID   string `env:"SMS_GATEWAY_ENTITY_ID"`
	TemplateID string `env:"SMS_GATEWAY_TEMPLATE_ID"`
}

// Validate checks the SMS gateway configuration.
func (c *SMSConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("missing SMS gateway URL")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("missing SMS gateway credentials")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMS gateway sender id")
	}
	return nil
}

// SMSSender is a Sender that delivers codes through the SMS gateway.
type SMSSender struct {
	config SMSConfig
	client *http.Client
}

// NewSMSSender creates an SMSSender from the given configuration. client
// may be nil, in which case a client with a 10s timeout is used.
func NewSMSSender(cfg SMSConfig, client *http.Client) (*SMSSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &SMSSender{
		config: cfg,
		client: client,
	}, nil
}

// Send delivers the code to the recipient's mobile number.
func (s *SMSSender) Send(ctx context.Context, recipient, code string) error {
	q := url.Values{}
	q.Set("username", s.config.Username)
	q.Set("password", s.config.Password)
	q.Set("from", s.config.From)
	q.Set("to", recipient)
	q.Set("text", fmt.Sprintf("Your verification code is %s", code))
	if s.config.EntityID != "" {
		q.Set("pe_id", s.config.EntityID)
	}
	if s.config.TemplateID != "" {
		q.Set("template_id", s.config.TemplateID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
