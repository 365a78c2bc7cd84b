package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ath-watcher/internal/alerting"
	"ath-watcher/internal/fetcher"
	"ath-watcher/internal/metrics"
	"ath-watcher/internal/storage"
)

// Outcome classifies how a cycle ended.
type Outcome string

const (
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeSaveFailed   Outcome = "save_failed"
	OutcomeNewHigh      Outcome = "new_high"
	OutcomeNotifyFailed Outcome = "notify_failed"
)

// Options identify the watched asset.
type Options struct {
	Asset    string
	Currency string
}

// Service runs the fetch, compare, persist, notify cycle.
type Service struct {
	source   fetcher.PriceSource
	store    storage.Store
	notifier alerting.Notifier
	metrics  *metrics.Recorder
	logger   zerolog.Logger

	asset    string
	currency string

	// mu serialises cycles so load-then-save is never interleaved within one process.
	mu  sync.Mutex
	now func() time.Time
}

// New constructs the watcher service. notifier and rec may be nil.
func New(opts Options, source fetcher.PriceSource, store storage.Store, notifier alerting.Notifier, rec *metrics.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		source:   source,
		store:    store,
		notifier: notifier,
		metrics:  rec,
		logger:   logger.With().Str("component", "service").Str("asset", opts.Asset).Logger(),
		asset:    opts.Asset,
		currency: opts.Currency,
		now:      time.Now,
	}
}

// ProcessTick 执行单次调度周期的采样逻辑。
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	_, err := s.RunCycle(ctx)
	return err
}

// RunCycle executes one cycle. Fetch and save failures are returned; a
// notification failure is logged and reported only through the outcome.
func (s *Service) RunCycle(ctx context.Context) (outcome Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	logger := s.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	defer func() {
		s.metrics.RecordCycle(string(outcome), s.now().Sub(started))
		logger.Debug().Str("outcome", string(outcome)).Msg("cycle finished")
	}()

	if s.source == nil || s.store == nil {
		return OutcomeFetchFailed, errors.New("service not wired: price source and store are required")
	}

	sample, err := s.source.FetchPrice(ctx)
	if err != nil {
		s.metrics.RecordError("fetch")
		return OutcomeFetchFailed, fmt.Errorf("fetch price: %w", err)
	}
	s.metrics.RecordPrice(sample.Value)

	previous := s.store.Load(ctx)
	s.metrics.RecordATH(previous)
	logger.Debug().Uint64("price", sample.Value).Uint64("ath", previous).Msg("price compared")

	if sample.Value <= previous {
		return OutcomeUnchanged, nil
	}

	if err := s.store.Save(ctx, sample.Value); err != nil {
		if errors.Is(err, storage.ErrNotAdvanced) {
			logger.Info().Uint64("price", sample.Value).Msg("ath already advanced by another writer; skipping notification")
			return OutcomeUnchanged, nil
		}
		s.metrics.RecordError("save")
		return OutcomeSaveFailed, fmt.Errorf("save ath %d: %w", sample.Value, err)
	}
	s.metrics.RecordATH(sample.Value)
	logger.Info().Uint64("ath", sample.Value).Uint64("previous", previous).Msg("new all time high")

	if s.notifier == nil {
		logger.Warn().Msg("no notification channel configured")
		return OutcomeNewHigh, nil
	}

	note := alerting.Notification{
		Asset:      s.asset,
		Currency:   s.currency,
		AthValue:   sample.Value,
		Previous:   previous,
		DetectedAt: sample.FetchedAt,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.metrics.RecordError("notify")
		logger.Error().Err(err).Uint64("ath", sample.Value).Msg("failed to send notification")
		return OutcomeNotifyFailed, nil
	}
	return OutcomeNewHigh, nil
}
