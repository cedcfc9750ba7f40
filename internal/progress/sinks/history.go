package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/progress"
	"github.com/mbazhenov/scoutbot/internal/scout"
)

// HistorySink writes one search-history row per terminal event so the record
// store keeps an audit trail of who searched what.
type HistorySink struct {
	store  scout.RecordStore
	logger *zap.Logger
}

// NewHistorySink constructs a HistorySink for the provided store.
func NewHistorySink(store scout.RecordStore, logger *zap.Logger) *HistorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistorySink{store: store, logger: logger}
}

// Consume records terminal events; progress ticks are ignored.
func (s *HistorySink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	for _, evt := range batch {
		if !evt.Terminal() {
			continue
		}
		rec := scout.SearchRecord{
			UserID:        evt.RequesterID,
			Username:      evt.Username,
			SitesChecked:  int(evt.SitesChecked),
			AccountsFound: int(evt.Found),
			Duration:      evt.Dur,
			Timestamp:     evt.TS,
		}
		if err := s.store.RecordSearch(ctx, rec); err != nil {
			return fmt.Errorf("record search history: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *HistorySink) Close(context.Context) error {
	return nil
}
