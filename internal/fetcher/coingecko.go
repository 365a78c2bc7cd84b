package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxBodyBytes = 1 << 20

	maxPriceLiteral   = 64
	maxFractionDigits = 32
	maxUint64Digits   = 20
)

// FeedOptions parameterise the CoinGecko simple/price fetcher.
type FeedOptions struct {
	URL          string
	Asset        string
	Currency     string
	Timeout      time.Duration
	UserAgent    string
	StrictFields bool
}

// Feed fetches the current price of one asset from a CoinGecko-style endpoint.
type Feed struct {
	opts   FeedOptions
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewFeed constructs a price feed fetcher.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts.Timeout = timeout
	opts.Asset = strings.ToLower(strings.TrimSpace(opts.Asset))
	opts.Currency = strings.ToLower(strings.TrimSpace(opts.Currency))

	return &Feed{
		opts:   opts,
		logger: logger.With().Str("component", "price_feed").Str("asset", opts.Asset).Logger(),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// FetchPrice issues one GET against the feed and extracts body[asset][currency].
func (f *Feed) FetchPrice(ctx context.Context) (PriceSample, error) {
	if f.opts.URL == "" {
		return PriceSample{}, f.fail(errors.New("feed url not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, nil)
	if err != nil {
		return PriceSample{}, f.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return PriceSample{}, f.fail(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return PriceSample{}, f.fail(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PriceSample{}, f.fail(parseHTTPError(resp.StatusCode, payload))
	}

	value, err := extractPrice(payload, f.opts.Asset, f.opts.Currency)
	if errors.Is(err, ErrPriceMissing) && !f.opts.StrictFields {
		f.logger.Warn().Str("currency", f.opts.Currency).Msg("price field missing from feed response; using 0")
		return PriceSample{Value: 0, FetchedAt: f.now()}, nil
	}
	if err != nil {
		return PriceSample{}, f.fail(err)
	}

	f.logger.Debug().Uint64("price", value).Msg("price fetched")
	return PriceSample{Value: value, FetchedAt: f.now()}, nil
}

func (f *Feed) fail(err error) error {
	return &FetchError{URL: f.opts.URL, Err: err}
}

// extractPrice decodes body[asset][currency] as a whole-unit price, truncating any fraction.
func extractPrice(payload []byte, asset, currency string) (uint64, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}

	rawAsset, ok := root[asset]
	if !ok || isNull(rawAsset) {
		return 0, fmt.Errorf("%w: %s", ErrPriceMissing, asset)
	}

	var quotes map[string]json.RawMessage
	if err := json.Unmarshal(rawAsset, &quotes); err != nil {
		return 0, fmt.Errorf("decode %s quotes: %w", asset, err)
	}

	rawPrice, ok := quotes[currency]
	if !ok || isNull(rawPrice) {
		return 0, fmt.Errorf("%w: %s.%s", ErrPriceMissing, asset, currency)
	}

	return parsePrice(rawPrice)
}

// parsePrice bounds the literal and its exponent before any rescaling.
func parsePrice(raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > maxPriceLiteral {
		return 0, fmt.Errorf("price literal too long (%d bytes)", len(raw))
	}

	var price decimal.Decimal
	if err := json.Unmarshal(raw, &price); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	if price.IsZero() {
		return 0, nil
	}
	if price.IsNegative() {
		return 0, errors.New("negative price")
	}

	exp := price.Exponent()
	digits := len(price.Coefficient().Text(10))
	switch {
	case exp < -maxFractionDigits:
		return 0, fmt.Errorf("price exponent %d out of range", exp)
	case exp < 0 && int(-exp) >= digits:
		// below one whole unit
		return 0, nil
	case exp > 0 && digits+int(exp) > maxUint64Digits:
		return 0, fmt.Errorf("price exponent %d out of range", exp)
	}

	whole := price.Truncate(0).BigInt()
	if !whole.IsUint64() {
		return 0, errors.New("price exceeds uint64")
	}
	return whole.Uint64(), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("feed api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("feed api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("feed api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("feed api error (%d)", status)
}

var _ PriceSource = (*Feed)(nil)
