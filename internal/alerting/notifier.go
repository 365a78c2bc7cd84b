package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Notification 封装一次新的历史最高价告警上下文。
type Notification struct {
	Asset      string
	Currency   string
	AthValue   uint64
	Previous   uint64
	DetectedAt time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// RenderMessage formats the human-readable alert text.
func RenderMessage(note Notification) string {
	asset := note.Asset
	if asset == "" {
		asset = "bitcoin"
	}
	symbol := currencySymbol(note.Currency)
	return fmt.Sprintf("New %s all time high: %s%d", asset, symbol, note.AthValue)
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "", "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy":
		return "¥"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// MultiNotifier fans a notification out to every channel and joins their errors.
type MultiNotifier []Notifier

// Notify attempts every channel even when an earlier one fails.
func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = MultiNotifier(nil)
