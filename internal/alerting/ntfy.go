package alerting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NtfyOptions parameterise the ntfy push notifier.
type NtfyOptions struct {
	URL      string
	Title    string
	Tags     []string
	Priority string
	Timeout  time.Duration
}

// NtfyNotifier posts the alert text as a plain-text body to an ntfy topic URL.
type NtfyNotifier struct {
	opts   NtfyOptions
	client *http.Client
	logger zerolog.Logger
}

// NewNtfyNotifier constructs an ntfy notifier.
func NewNtfyNotifier(opts NtfyOptions, logger zerolog.Logger) *NtfyNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &NtfyNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "alert_ntfy").Logger(),
	}
}

// Notify sends one POST to the topic URL.
func (n *NtfyNotifier) Notify(ctx context.Context, note Notification) error {
	if n.opts.URL == "" {
		return fmt.Errorf("ntfy url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, strings.NewReader(RenderMessage(note)))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if n.opts.Title != "" {
		req.Header.Set("Title", n.opts.Title)
	}
	if len(n.opts.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(n.opts.Tags, ","))
	}
	if n.opts.Priority != "" {
		req.Header.Set("Priority", n.opts.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy unexpected status: %d", resp.StatusCode)
	}

	n.logger.Info().Uint64("ath", note.AthValue).Msg("notification sent (ntfy)")
	return nil
}

var _ Notifier = (*NtfyNotifier)(nil)
