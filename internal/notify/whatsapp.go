package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

const whatsappPrefix = "whatsapp:"

// TwilioConfig holds the credentials and numbers for WhatsApp delivery.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	BaseURL    string
	Timeout    time.Duration
}

// APIError is an error body returned by the Twilio API.
type APIError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio: HTTP %d", e.Status)
	}
	return fmt.Sprintf("twilio: HTTP %d: %s (code %d)", e.Status, e.Message, e.Code)
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// WhatsApp sends messages through the Twilio messages API.
type WhatsApp struct {
	cfg    TwilioConfig
	client *resty.Client
}

// NewWhatsApp creates a WhatsApp notifier.
func NewWhatsApp(cfg TwilioConfig) *WhatsApp {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	return &WhatsApp{cfg: cfg, client: client}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Send posts message to the configured recipient.
func (w *WhatsApp) Send(ctx context.Context, message string) error {
	if w.cfg.AccountSID == "" || w.cfg.AuthToken == "" || w.cfg.From == "" || w.cfg.To == "" {
		return &SendError{Channel: w.Name(), Cause: ErrNotConfigured}
	}

	var out messageResponse
	var apiErr APIError
	resp, err := w.client.R().
		SetContext(ctx).
		SetPathParam("sid", w.cfg.AccountSID).
		SetFormData(map[string]string{
			"From": whatsappAddress(w.cfg.From),
			"To":   whatsappAddress(w.cfg.To),
			"Body": message,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return &SendError{Channel: w.Name(), Cause: err}
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return &SendError{Channel: w.Name(), Cause: &apiErr}
	}

	slog.InfoContext(ctx, "whatsapp message sent", "sid", out.SID, "status", out.Status)
	return nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
