package pipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extraction"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/queue"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

// ContentRunner is the extraction stage. It pulls work off the submission
// queue, extracts each post on a bounded pool and forwards the resulting
// content ids to the download queue.
type ContentRunner struct {
	runner.Base
	deps extraction.Deps
	in   *queue.SubmissionQueue
	out  *queue.DownloadQueue
	pool *pool
	log  logrus.FieldLogger

	mu       sync.Mutex
	held     bool
	buffered []int64
	// active holds the reddit ids of posts being extracted so a post listed
	// by two objects is only walked once.
	active map[string]bool
}

// NewContentRunner creates an extraction stage running at most threads posts
// at once.
func NewContentRunner(deps extraction.Deps, in *queue.SubmissionQueue, out *queue.DownloadQueue, threads int) *ContentRunner {
	log := deps.Env.Log.WithField("stage", "extraction")
	return &ContentRunner{
		Base: runner.Base{Signal: deps.Env.Signal},
		deps: deps,
		in:   in,
		out:  out,
		pool:   newPool(threads, log),
		log:    log,
		active: make(map[string]bool),
	}
}

// Running reports whether any extraction is still in flight.
func (r *ContentRunner) Running() bool {
	return r.pool.inFlight() > 0
}

// Enqueue forwards content ids downstream, or buffers them while held.
func (r *ContentRunner) Enqueue(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held {
		r.buffered = append(r.buffered, ids...)
		return
	}
	for _, id := range ids {
		r.out.Put(queue.Item(id))
	}
}

func (r *ContentRunner) hold() {
	r.mu.Lock()
	r.held = true
	r.mu.Unlock()
	r.log.Debug("Holding downloads")
}

// release flushes the buffer and, when forward is set, passes the release on.
func (r *ContentRunner) release(forward bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held = false
	for _, id := range r.buffered {
		r.out.Put(queue.Item(id))
	}
	r.buffered = nil
	if forward {
		r.out.Put(queue.ReleaseMessage[int64]())
	}
}

// Run consumes the submission queue until a Stop message arrives or ctx is
// done. On Stop it waits for in-flight posts, flushes anything held back and
// sends Stop to the download queue.
func (r *ContentRunner) Run(ctx context.Context) error {
	for {
		msg, err := r.in.Get(ctx)
		if err != nil {
			r.pool.wait()
			return err
		}
		switch msg.Control {
		case queue.Hold:
			r.hold()
		case queue.ReleaseHold:
			r.release(true)
		case queue.Stop:
			r.log.Debug("Extraction stage draining")
			r.pool.wait()
			r.release(false)
			r.out.Put(queue.StopMessage[int64]())
			return nil
		default:
			if !r.Continue() {
				continue
			}
			work := msg.Payload
			if err := r.pool.submit(ctx, func() { r.process(ctx, work) }); err != nil {
				r.pool.wait()
				return err
			}
		}
	}
}

func (r *ContentRunner) process(ctx context.Context, w queue.Work) {
	if !r.Continue() {
		return
	}
	var h *extraction.SubmissionHandler
	switch w.Kind {
	case queue.ResumePost:
		h = r.resume(ctx, w)
	default:
		h = r.submission(ctx, w)
	}
	if h != nil {
		defer r.finish(h.Post().RedditID)
		h.ExtractSubmission(ctx)
	}
}

// claim marks redditID as being extracted. It reports false when another
// worker already holds it.
func (r *ContentRunner) claim(redditID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[redditID] {
		return false
	}
	r.active[redditID] = true
	return true
}

func (r *ContentRunner) finish(redditID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, redditID)
}

func (r *ContentRunner) submission(ctx context.Context, w queue.Work) *extraction.SubmissionHandler {
	store := r.deps.Env.Store
	log := r.log.WithFields(logrus.Fields{"work": w.String()})
	if w.Submission == nil {
		log.Error("Submission work item carries no submission")
		return nil
	}
	obj, err := store.GetObject(ctx, w.SignificantID)
	if err != nil {
		log.WithError(err).Error("Failed to load significant reddit object")
		r.deps.Sink.Error("Failed to load reddit object %d: %v", w.SignificantID, err)
		return nil
	}

	if !r.claim(w.Submission.ID) {
		log.Debug("Post is already being extracted, skipping")
		return nil
	}
	h := r.newSubmission(ctx, w, obj, log)
	if h == nil {
		r.finish(w.Submission.ID)
	}
	return h
}

func (r *ContentRunner) newSubmission(ctx context.Context, w queue.Work, obj *domain.RedditObject, log logrus.FieldLogger) *extraction.SubmissionHandler {
	store := r.deps.Env.Store
	post := extraction.PostFromSubmission(w.Submission, obj, r.deps.Env.SessionID)
	created, err := store.InsertPost(ctx, post)
	if err != nil {
		log.WithError(err).Error("Failed to store post")
		r.deps.Sink.Error("Failed to store post %q: %v", w.Submission.Title, err)
		return nil
	}
	if created {
		return extraction.NewSubmissionHandler(r.deps, r, post, obj, w.Submission)
	}
	existing, err := store.GetPost(ctx, post.ID)
	if err != nil {
		log.WithError(err).Error("Failed to load existing post")
		return nil
	}
	if existing.Extracted || existing.Failed() || existing.DownloadSessionID == r.deps.Env.SessionID {
		log.Debug("Post already handled, skipping")
		return nil
	}
	// Listed again before an earlier session finished it.
	return extraction.NewSubmissionHandler(r.deps, r, existing, obj, w.Submission).Resuming()
}

func (r *ContentRunner) resume(ctx context.Context, w queue.Work) *extraction.SubmissionHandler {
	store := r.deps.Env.Store
	log := r.log.WithFields(logrus.Fields{"work": w.String()})
	post, err := store.GetPost(ctx, w.PostID)
	if err != nil {
		log.WithError(err).Error("Failed to load post to resume")
		return nil
	}
	if post.Extracted || post.Failed() {
		return nil
	}
	id := w.SignificantID
	if id == 0 {
		id = post.SignificantID
	}
	obj, err := store.GetObject(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to load significant reddit object")
		return nil
	}
	if !r.claim(post.RedditID) {
		log.Debug("Post is already being extracted, skipping")
		return nil
	}
	r.deps.Sink.Debug("Resuming extraction of %q", post.Title)
	return extraction.NewSubmissionHandler(r.deps, r, post, obj, nil).Resuming()
}

var _ extraction.Enqueuer = (*ContentRunner)(nil)

// bufferedLen counts content held back from the download queue.
func (r *ContentRunner) bufferedLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffered)
}
