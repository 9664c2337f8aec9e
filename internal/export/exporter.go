// Package export periodically writes trade history and portfolio snapshots
// to blob storage as JSON documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
)

// Config controls the export schedule and object layout.
type Config struct {
	// Interval between exports. Defaults to 24 hours.
	Interval time.Duration
	// Prefix is prepended to every object key.
	Prefix string
}

// Exporter snapshots the settled trade history and portfolio curve into blob
// storage on a fixed schedule. Objects are keyed by date so each run
// overwrites at most that day's export.
type Exporter struct {
	trades    domain.TradeStore
	snapshots domain.SnapshotStore
	blob      domain.BlobWriter
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Exporter.
func New(trades domain.TradeStore, snapshots domain.SnapshotStore, blob domain.BlobWriter, cfg Config, logger *slog.Logger) *Exporter {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "exports"
	}
	return &Exporter{
		trades:    trades,
		snapshots: snapshots,
		blob:      blob,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

type exportDocument struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Trades      []domain.Trade             `json:"trades"`
	Snapshots   []domain.PortfolioSnapshot `json:"snapshots"`
}

// Run exports immediately, then on every interval tick until ctx is
// cancelled. Individual export failures are logged and the schedule
// continues.
func (e *Exporter) Run(ctx context.Context) error {
	if err := e.ExportOnce(ctx); err != nil {
		e.logger.Error("export failed", "error", err)
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.ExportOnce(ctx); err != nil {
				e.logger.Error("export failed", "error", err)
			}
		}
	}
}

// ExportOnce writes one dated export object containing all settled trades
// and the recent portfolio history.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	trades, err := e.trades.ListSettled(ctx)
	if err != nil {
		return fmt.Errorf("export: list settled trades: %w", err)
	}

	snaps, err := e.snapshots.ListRecent(ctx, 1000)
	if err != nil {
		return fmt.Errorf("export: list snapshots: %w", err)
	}

	doc := exportDocument{
		GeneratedAt: e.now().UTC(),
		Trades:      trades,
		Snapshots:   snaps,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal document: %w", err)
	}

	key := fmt.Sprintf("%s/%s.json", e.cfg.Prefix, doc.GeneratedAt.Format("2006-01-02"))
	if err := e.blob.Put(ctx, key, "application/json", data); err != nil {
		return fmt.Errorf("export: upload %s: %w", key, err)
	}

	e.logger.Info("export complete",
		"key", key,
		"trades", len(trades),
		"snapshots", len(snaps))
	return nil
}
