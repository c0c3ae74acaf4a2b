package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cerrgroup "cloudeng.io/sync/errgroup"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/core"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/merge"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/pipeline"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/queue"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/telemetry"
)

// ErrRunning is returned when Run is called while a session is active.
var ErrRunning = errors.New("a download session is already running")

// Summary describes a finished session
type Summary struct {
	Session  *domain.DownloadSession
	Queued   int
	Resumed  int
	Merged   int
	Progress pipeline.Progress
}

// Manager runs download sessions: it lists new submissions, resumes
// unfinished work, drives both pipeline stages and muxes video with audio
// once they drain.
type Manager struct {
	deps *core.Deps
	log  logrus.FieldLogger

	mu         sync.Mutex
	running    bool
	signal     *runner.Signal
	subs       *queue.SubmissionQueue
	downloads  *queue.DownloadQueue
	downloader *pipeline.Downloader
}

// NewManager creates a new manager
func NewManager(deps *core.Deps) *Manager {
	return &Manager{
		deps: deps,
		log:  deps.Log.WithField("component", "manager"),
	}
}

// Run executes one session over objects, or over every stored object when
// objects is empty.
func (m *Manager) Run(ctx context.Context, objects []*domain.RedditObject) (*Summary, error) {
	signal, subs, downloads, err := m.begin()
	if err != nil {
		return nil, err
	}
	defer m.end()

	settings := m.deps.Settings
	store := m.deps.Store
	session := &domain.DownloadSession{
		Name:              "session-" + uuid.NewString(),
		StartTime:         time.Now().UTC(),
		ExtractionThreads: settings.ExtractionThreads,
		DownloadThreads:   settings.DownloadThreads,
	}
	if err := store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log := m.log.WithField("session", session.Name)

	stopTelemetry := m.startTelemetry(ctx, session.Name)
	defer stopTelemetry()

	if len(objects) == 0 {
		if objects, err = store.ListObjects(ctx); err != nil {
			return nil, fmt.Errorf("failed to list reddit objects: %w", err)
		}
	}

	// Collected before either stage starts so rows created by this session
	// are not enqueued twice.
	unfinished, err := store.UnfinishedPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unfinished posts: %w", err)
	}
	pending, err := store.PendingContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending content: %w", err)
	}

	merges := merge.NewRegistry()
	deps := m.deps.Session(session.ID, signal, merges)
	extraction := pipeline.NewContentRunner(deps, subs, downloads, settings.ExtractionThreads)
	downloader := pipeline.NewDownloader(deps, downloads, settings.DownloadThreads)
	m.mu.Lock()
	m.downloader = downloader
	m.mu.Unlock()

	var stages cerrgroup.T
	stages.Go(func() error { return extraction.Run(ctx) })
	stages.Go(func() error { return downloader.Run(ctx) })

	log.WithFields(logrus.Fields{
		"objects":    len(objects),
		"unfinished": len(unfinished),
		"pending":    len(pending),
	}).Info("Download session started")
	m.deps.Sink.Info("Download session %s started", session.Name)

	summary := &Summary{Session: session, Resumed: len(unfinished)}
	for _, p := range unfinished {
		subs.Put(queue.Resume(p.ID, p.SignificantID))
	}
	for _, id := range pending {
		downloads.Put(queue.Item(id))
	}
	for _, obj := range objects {
		if signal.Stopped() || ctx.Err() != nil {
			break
		}
		summary.Queued += m.list(ctx, subs, obj)
	}
	subs.Put(queue.StopMessage[queue.Work]())

	if err := stages.Wait(); err != nil {
		log.WithError(err).Warn("Pipeline stopped early")
	}

	if sets := merges.Drain(); len(sets) > 0 && !signal.HardStopped() {
		summary.Merged = m.deps.Muxer.MergeAll(ctx, sets)
		log.Infof("Merged %d of %d video and audio pairs", summary.Merged, len(sets))
	}

	finishCtx := context.WithoutCancel(ctx)
	if err := store.FinishSession(finishCtx, session.ID, time.Now().UTC()); err != nil {
		log.WithError(err).Error("Failed to finish session")
	}
	if s, err := store.GetSession(finishCtx, session.ID); err == nil {
		summary.Session = s
	}
	summary.Progress = downloader.Progress()

	log.WithFields(logrus.Fields{
		"extracted":  summary.Session.ExtractedCount,
		"downloaded": summary.Session.DownloadedCount,
		"merged":     summary.Merged,
	}).Info("Download session finished")
	m.deps.Sink.Info("Download session finished: %d posts extracted, %d files downloaded",
		summary.Session.ExtractedCount, summary.Session.DownloadedCount)
	return summary, ctx.Err()
}

// list enqueues the new submissions of obj that pass its score and date
// limits, and returns how many were queued.
func (m *Manager) list(ctx context.Context, subs *queue.SubmissionQueue, obj *domain.RedditObject) int {
	log := m.log.WithFields(logrus.Fields{"object": obj.Name, "type": obj.ObjectType})
	s := obj.Settings
	listed, err := m.deps.Lister.Listing(ctx, obj, s.PostLimit)
	if err != nil {
		log.WithError(err).Error("Failed to list submissions")
		m.deps.Sink.Error("Failed to list submissions for %s: %v", obj.Name, err)
		return 0
	}

	since := obj.LastDownload
	if s.DateLimit.After(since) {
		since = s.DateLimit
	}
	newest := obj.LastDownload
	queued := 0
	for _, sub := range listed {
		if !accept(sub, s.MinScore, since) {
			continue
		}
		subs.Put(queue.NewSubmission(sub, obj.ID))
		queued++
		if created := sub.Created(); created.After(newest) {
			newest = created
		}
	}
	if newest.After(obj.LastDownload) {
		if err := m.deps.Store.SetLastDownload(ctx, obj.ID, newest); err != nil {
			log.WithError(err).Warn("Failed to record last download time")
		}
	}
	log.WithField("queued", queued).Debugf("Listed %d submissions", len(listed))
	return queued
}

func accept(sub *reddit.Submission, minScore int, since time.Time) bool {
	if sub.Score < minScore {
		return false
	}
	return since.IsZero() || sub.Created().After(since)
}

// Hold pauses both stages from forwarding new work.
func (m *Manager) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		return
	}
	m.subs.Put(queue.HoldMessage[queue.Work]())
	m.downloads.Put(queue.HoldMessage[int64]())
}

// Release resumes forwarding. The release travels through the extraction
// stage to the download stage.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		return
	}
	m.subs.Put(queue.ReleaseMessage[queue.Work]())
}

// Stop asks the running session to stop. A hard stop also aborts downloads
// mid-write.
func (m *Manager) Stop(hard bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signal == nil {
		return
	}
	if hard {
		m.signal.HardStop()
	} else {
		m.signal.Stop()
	}
}

// Progress reports the download stage of the running session.
func (m *Manager) Progress() pipeline.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloader == nil {
		return pipeline.Progress{}
	}
	return m.downloader.Progress()
}

func (m *Manager) begin() (*runner.Signal, *queue.SubmissionQueue, *queue.DownloadQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil, nil, nil, ErrRunning
	}
	m.running = true
	m.signal = runner.NewSignal()
	m.subs = queue.New[queue.Message[queue.Work]]()
	m.downloads = queue.New[queue.Message[int64]]()
	return m.signal, m.subs, m.downloads, nil
}

func (m *Manager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.signal = nil
	m.subs, m.downloads = nil, nil
	m.downloader = nil
}

// startTelemetry drains the sink into the log and, when configured, the
// message archive. The returned func flushes and stops it.
func (m *Manager) startTelemetry(ctx context.Context, session string) func() {
	consumers := []telemetry.Consumer{telemetry.LogConsumer(m.log)}
	if m.deps.Archive != nil {
		consumers = append(consumers, telemetry.ConsumerFunc(m.deps.Archive.ForSession(session).SaveMessage))
	}
	sinkCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.deps.Sink.Run(sinkCtx, m.log, consumers...)
	}()
	return func() {
		cancel()
		wg.Wait()
		if n := m.deps.Sink.Dropped(); n > 0 {
			m.log.WithField("dropped", n).Warn("Telemetry messages were dropped")
		}
	}
}
