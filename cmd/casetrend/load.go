package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/casetrend/internal/config"
	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/session"
	"github.com/verte-zerg/casetrend/internal/snapshot"
	"github.com/verte-zerg/casetrend/internal/source"
	"github.com/verte-zerg/casetrend/internal/store"
)

var errNoCache = errors.New("no cached dataset, run `casetrend fetch` while online")

func openSession(ctx context.Context, env *runtimeEnv) (*session.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	rows, fetch, err := loadRows(ctx, env.source, st, env.logger, time.Now())
	if err != nil {
		return nil, err
	}
	env.logger.Info("using dataset",
		zap.String("fetch", fetch.ID),
		zap.String("source", fetch.Source),
		zap.Time("fetched_at", fetch.FetchedAt))

	ds, err := dataset.Load(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return newSession(ds, env.today, env.logger)
}

// newSession starts a session, pointing at --date when the dataset stops
// before today.
func newSession(ds *dataset.Dataset, today time.Time, logger *zap.Logger) (*session.Session, error) {
	sess, err := session.New(ds, today, logger)
	var noRecent *snapshot.NoRecentDataError
	if errors.As(err, &noRecent) {
		dates := ds.Dates()
		last := dates[len(dates)-1]
		return nil, fmt.Errorf("failed to start session: %w; the dataset ends on %s, pass --date %s (YYYY-MM-DD) to query it",
			err, last.Format(dataset.DateLayout), last.AddDate(0, 0, 1).Format(dataset.DateLayout))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

// loadRows downloads the source unless offline, falling back to the cache
// when the download fails.
func loadRows(ctx context.Context, cfg model.SourceConfig, st *store.Store, logger *zap.Logger, now time.Time) ([]model.RawRow, model.Fetch, error) {
	if cfg.Offline {
		return cachedRows(ctx, st)
	}
	rows, fetchErr := download(ctx, cfg)
	if fetchErr == nil {
		fetch, err := st.SaveFetch(ctx, cfg.URL, now, rows)
		if err != nil {
			logger.Warn("failed to cache dataset", zap.Error(err))
			fetch = model.Fetch{Source: cfg.URL, FetchedAt: now, RowCount: len(rows)}
		}
		return rows, fetch, nil
	}
	logger.Warn("download failed, trying cached dataset", zap.Error(fetchErr))
	rows, fetch, err := cachedRows(ctx, st)
	if errors.Is(err, errNoCache) {
		return nil, model.Fetch{}, fmt.Errorf("failed to download dataset: %w", fetchErr)
	}
	if err != nil {
		return nil, model.Fetch{}, err
	}
	logErrf("warning: download failed, using data cached at %s\n", fetch.FetchedAt.Local().Format(time.DateTime))
	return rows, fetch, nil
}

func download(ctx context.Context, cfg model.SourceConfig) ([]model.RawRow, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return source.Fetch(ctx, &http.Client{Timeout: cfg.Timeout}, cfg.URL)
}

func fetchAndCache(ctx context.Context, cfg model.SourceConfig, st *store.Store, now time.Time) (model.Fetch, []model.RawRow, error) {
	rows, err := download(ctx, cfg)
	if err != nil {
		return model.Fetch{}, nil, err
	}
	fetch, err := st.SaveFetch(ctx, cfg.URL, now, rows)
	if err != nil {
		return model.Fetch{}, nil, fmt.Errorf("failed to cache dataset: %w", err)
	}
	return fetch, rows, nil
}

func cachedRows(ctx context.Context, st *store.Store) ([]model.RawRow, model.Fetch, error) {
	fetch, rows, err := st.LatestFetch(ctx)
	if errors.Is(err, store.ErrNoFetch) {
		return nil, model.Fetch{}, errNoCache
	}
	if err != nil {
		return nil, model.Fetch{}, fmt.Errorf("failed to read cached dataset: %w", err)
	}
	return rows, fetch, nil
}
