package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wamstack/wamstack/console/internal/engine"
	"github.com/wamstack/wamstack/console/internal/snapshot"
	"github.com/wamstack/wamstack/pkg/types"
)

// Fetcher is the snapshot collaborator.
type Fetcher interface {
	Readings(ctx context.Context, limit int) ([]map[string]any, error)
	Thresholds(ctx context.Context) (types.Thresholds, error)
}

// Sync fetches the most recent readings once and replaces the series with
// them. Failures are surfaced as a status notice and returned; nothing is
// retried.
func Sync(ctx context.Context, f Fetcher, e *engine.Engine, limit int) (int, error) {
	recs, err := f.Readings(ctx, limit)
	if err != nil {
		slog.Warn("api: snapshot fetch failed", "err", err)
		if errors.Is(err, snapshot.ErrUnreachable) {
			e.Notify(engine.StatusUnreachable, engine.LevelWarn)
		} else {
			e.Notify("Could not load readings", engine.LevelWarn)
		}
		return 0, err
	}
	return e.Load(recs, engine.SourceSnapshot), nil
}

// FollowThresholds refetches the server thresholds and installs them.
func FollowThresholds(ctx context.Context, f Fetcher, e *engine.Engine) error {
	th, err := f.Thresholds(ctx)
	if err != nil {
		slog.Warn("api: thresholds refetch failed", "err", err)
		return err
	}
	return e.SetThresholds(th)
}
