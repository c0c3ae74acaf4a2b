package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/core"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/manager"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the config file (default: config.yaml in . or ./config)")
		users      = flag.String("users", "", "Comma separated reddit users to download from")
		subreddits = flag.String("subreddits", "", "Comma separated subreddits to download from")
		threads    = flag.Int("download-threads", 0, "Override the number of download threads")
		errorsOf   = flag.String("errors", "", "Print the archived error messages of a session and exit")
	)
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *threads > 0 {
		settings.DownloadThreads = *threads
	}
	log, err := settings.NewLogger()
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := core.New(ctx, settings, log)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer deps.Close(context.Background())

	if *errorsOf != "" {
		if err := printErrors(ctx, deps, *errorsOf); err != nil {
			log.Fatalf("Failed to read archived errors: %v", err)
		}
		return
	}

	objects, err := ensureObjects(ctx, deps, *users, *subreddits)
	if err != nil {
		log.Fatalf("Failed to register reddit objects: %v", err)
	}

	m := manager.NewManager(deps)
	go handleSignals(m, log)

	start := time.Now()
	summary, err := m.Run(ctx, objects)
	if err != nil {
		log.Fatalf("Download session failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"session":    summary.Session.Name,
		"queued":     summary.Queued,
		"resumed":    summary.Resumed,
		"extracted":  summary.Session.ExtractedCount,
		"downloaded": summary.Session.DownloadedCount,
		"merged":     summary.Merged,
		"duration":   time.Since(start).Round(time.Millisecond),
	}).Info("Done")
}

// handleSignals stops gracefully on the first interrupt and hard on the
// second.
func handleSignals(m *manager.Manager, log logrus.FieldLogger) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	log.Info("Stopping after in-flight work, interrupt again to abort downloads")
	m.Stop(false)
	<-ch
	log.Warn("Aborting downloads")
	m.Stop(true)
}

func ensureObjects(ctx context.Context, deps *core.Deps, users, subreddits string) ([]*domain.RedditObject, error) {
	var objects []*domain.RedditObject
	add := func(list string, kind domain.ObjectType) error {
		for _, name := range strings.Split(list, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			obj, err := deps.Store.EnsureObject(ctx, name, kind, deps.Settings.Defaults)
			if err != nil {
				return err
			}
			objects = append(objects, obj)
		}
		return nil
	}
	if err := add(users, domain.UserObject); err != nil {
		return nil, err
	}
	if err := add(subreddits, domain.SubredditObject); err != nil {
		return nil, err
	}
	return objects, nil
}

func printErrors(ctx context.Context, deps *core.Deps, session string) error {
	if deps.Archive == nil {
		return fmt.Errorf("no message archive configured (set mongo.uri)")
	}
	msgs, err := deps.Archive.SessionErrors(ctx, session)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		fmt.Println(msg)
	}
	return nil
}
