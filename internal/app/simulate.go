package app

import (
	"context"
	"errors"
	"time"

	"ath-watcher/internal/alerting"
)

// SimulateAlert 通过已配置的告警通道模拟一次新高推送，不读写存储。
func (a *App) SimulateAlert(ctx context.Context, value uint64) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	note := alerting.Notification{
		Asset:      a.Config.Feed.Asset,
		Currency:   a.Config.Feed.Currency,
		AthValue:   value,
		DetectedAt: time.Now().UTC(),
	}
	if err := notifier.Notify(ctx, note); err != nil {
		return err
	}
	a.Logger.Info().Uint64("ath", value).Msg("simulated alert sent")
	return nil
}
