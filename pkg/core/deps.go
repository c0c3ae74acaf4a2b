// Package core builds the collaborators shared by every session of the
// process and hands them to the pipeline explicitly.
package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/db"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extraction"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extractor"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/filter"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/merge"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/naming"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/telemetry"
)

// sinkSize bounds the user-facing message buffer.
const sinkSize = 1024

// Deps holds one instance of every process-wide collaborator.
type Deps struct {
	Settings *config.Settings
	Log      *logrus.Logger
	Store    db.Store
	// Archive is nil unless mongo.uri is configured.
	Archive  *db.Client
	Sink     *telemetry.Sink
	Web      *httpclient.HTTPClient
	API      *httpclient.HTTPClient
	Provider reddit.Provider
	Lister   reddit.Lister
	Filter   *filter.ContentFilter
	Sites    *extractor.SupportedSites
	Table    *extractor.Table
	Resolver extractor.URLResolver
	Muxer    *merge.Muxer
}

// New connects the stores and builds every client from settings.
func New(ctx context.Context, settings *config.Settings, log *logrus.Logger) (*Deps, error) {
	store := db.NewSQLStore(db.SQLConfig{Driver: settings.Database.Driver, DSN: settings.Database.DSN})
	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %w", settings.Database.Driver, err)
	}

	var archive *db.Client
	if settings.Mongo.URI != "" {
		archive = db.NewClient(settings.Mongo.URI, settings.Mongo.Database, settings.Mongo.Collection)
		if err := archive.Connect(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to message archive: %w", err)
		}
	}

	d := NewWithStore(settings, log, store)
	d.Archive = archive
	return d, nil
}

// NewWithStore builds the clients around an already connected store.
func NewWithStore(settings *config.Settings, log *logrus.Logger, store db.Store) *Deps {
	timeout := settings.RequestTimeout
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	web := httpclient.NewClient(httpclient.BrowserClient, httpclient.WithTimeout(timeout))
	api := httpclient.NewClient(httpclient.APIClient,
		httpclient.WithTimeout(timeout),
		httpclient.WithUserAgent(settings.Reddit.UserAgent),
		httpclient.WithRateLimit(settings.Reddit.RequestsPerSecond),
		httpclient.WithRetries(settings.Reddit.Retries, httpclient.DefaultTimeout/20),
	)

	provider := reddit.NewClient(settings.Reddit.BaseURL, api)
	var lister reddit.Lister = provider
	if settings.Reddit.Listing == "feed" {
		lister = reddit.NewFeedLister(settings.Reddit.BaseURL, api, provider)
	}

	sites := extractor.NewSupportedSites(settings.SupportedSites.Path, settings.SupportedSites.TTL, log)
	return &Deps{
		Settings: settings,
		Log:      log,
		Store:    store,
		Sink:     telemetry.NewSink(sinkSize),
		Web:      web,
		API:      api,
		Provider: provider,
		Lister:   lister,
		Filter:   filter.Default(store, func() bool { return settings.DownloadRedditVideos }),
		Sites:    sites,
		Table:    extractor.NewTable(sites, settings.ExtractorEnabled),
		Resolver: extractor.YTDLP{Format: settings.YTDLP.Format},
		Muxer:    merge.NewMuxer(settings.FFmpeg.Path, store, log),
	}
}

// Session builds the per-session extraction dependencies. Name collisions
// and merge sets are tracked per session.
func (d *Deps) Session(sessionID int64, signal *runner.Signal, merges *merge.Registry) extraction.Deps {
	return extraction.Deps{
		Env: &extractor.Env{
			Store:     d.Store,
			Filter:    d.Filter,
			Web:       d.Web,
			API:       d.API,
			Provider:  d.Provider,
			Settings:  d.Settings,
			Merges:    merges,
			Names:     naming.NewRegistry(),
			Resolver:  d.Resolver,
			Signal:    signal,
			Log:       d.Log,
			SessionID: sessionID,
		},
		Table: d.Table,
		Sink:  d.Sink,
	}
}

// Close releases the stores.
func (d *Deps) Close(ctx context.Context) error {
	var err error
	if d.Archive != nil {
		err = d.Archive.Close(ctx)
	}
	if cerr := d.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
