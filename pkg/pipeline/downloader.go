package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extraction"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/queue"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

const writeBufferSize = 64 * 1024

// Progress is a snapshot of the download stage.
type Progress struct {
	Downloaded  int64
	Outstanding int64
}

// Downloader is the download stage. It pulls content ids off the download
// queue and writes each file on a bounded pool.
type Downloader struct {
	runner.Base
	deps      extraction.Deps
	in        *queue.DownloadQueue
	pool      *pool
	multipart *MultipartDownloader
	log       logrus.FieldLogger

	held       bool
	buffered   []int64
	heldCount  atomic.Int64
	downloaded atomic.Int64
}

// NewDownloader creates a download stage running at most threads downloads
// at once.
func NewDownloader(deps extraction.Deps, in *queue.DownloadQueue, threads int) *Downloader {
	env := deps.Env
	log := env.Log.WithField("stage", "download")
	return &Downloader{
		Base:      runner.Base{Signal: env.Signal},
		deps:      deps,
		in:        in,
		pool:      newPool(threads, log),
		multipart: NewMultipartDownloader(env.Web, env.Settings.Multipart, env.Signal, log),
		log:       log,
	}
}

// Running reports whether any download is still in flight.
func (d *Downloader) Running() bool {
	return d.pool.inFlight() > 0
}

// Progress returns how many files were written and how many are queued,
// held or in flight.
func (d *Downloader) Progress() Progress {
	return Progress{
		Downloaded:  d.downloaded.Load(),
		Outstanding: int64(d.in.Len()) + d.heldCount.Load() + d.pool.inFlight(),
	}
}

// Run consumes the download queue until a Stop message arrives or ctx is
// done. On Stop it dispatches anything held back and waits for every
// in-flight download.
func (d *Downloader) Run(ctx context.Context) error {
	for {
		msg, err := d.in.Get(ctx)
		if err != nil {
			d.pool.wait()
			return err
		}
		switch msg.Control {
		case queue.Hold:
			d.held = true
			d.log.Debug("Holding downloads")
		case queue.ReleaseHold:
			d.held = false
			if err := d.flush(ctx); err != nil {
				d.pool.wait()
				return err
			}
		case queue.Stop:
			d.log.Debug("Download stage draining")
			err := d.flush(ctx)
			d.pool.wait()
			return err
		default:
			if d.held {
				d.buffered = append(d.buffered, msg.Payload)
				d.heldCount.Add(1)
				continue
			}
			if err := d.dispatch(ctx, msg.Payload); err != nil {
				d.pool.wait()
				return err
			}
		}
	}
}

func (d *Downloader) flush(ctx context.Context) error {
	ids := d.buffered
	d.buffered = nil
	d.heldCount.Store(0)
	for _, id := range ids {
		if err := d.dispatch(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) dispatch(ctx context.Context, id int64) error {
	if !d.Continue() {
		// Left pending for the next session.
		return nil
	}
	return d.pool.submit(ctx, func() { d.Download(ctx, id) })
}

// Download fetches one content row and records its terminal state.
func (d *Downloader) Download(ctx context.Context, id int64) {
	if !d.Continue() {
		return
	}
	env := d.deps.Env
	c, err := env.Store.GetContent(ctx, id)
	if err != nil {
		d.log.WithError(err).WithField("content_id", id).Error("Failed to load content")
		return
	}
	if c.Downloaded {
		return
	}

	title := env.Names.Claim(c.DirectoryPath, c.Title, c.Extension)
	if title != c.DownloadTitle {
		c.DownloadTitle = title
		if err := env.Store.SetContentLocation(ctx, c.ID, c.DirectoryPath, title); err != nil {
			d.log.WithError(err).WithField("content_id", id).Warn("Failed to store download title")
		}
	}
	path := filepath.Join(c.DirectoryPath, c.FileName())
	defer func() {
		if r := recover(); r != nil {
			d.fail(ctx, c, path, domain.UnknownError, fmt.Sprintf("download panicked: %v", r))
		}
	}()

	kind, msg := d.fetch(ctx, c, path)
	if kind != domain.NoError {
		d.fail(ctx, c, path, kind, msg)
		return
	}
	d.finish(ctx, c, path)
}

func (d *Downloader) fetch(ctx context.Context, c *domain.Content, path string) (domain.ErrorKind, string) {
	settings := d.deps.Env.Settings
	if err := os.MkdirAll(c.DirectoryPath, 0o755); err != nil {
		return domain.UnknownError, fmt.Sprintf("failed to create directory: %v", err)
	}

	resp, err := d.deps.Env.Web.Get(ctx, c.URL)
	if err != nil {
		return httpclient.Kind(err), err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.UnsuccessfulResponse, fmt.Sprintf("unsuccessful response: status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size >= 0 && size < settings.MinFileSize {
		return domain.DoesNotExist, fmt.Sprintf("response of %d bytes is below the minimum file size", size)
	}
	threshold := settings.Multipart.Threshold
	if threshold > 0 && size >= threshold && resp.Header.Get("Accept-Ranges") == "bytes" {
		resp.Body.Close()
		return d.fetchMultipart(ctx, c, path, size)
	}
	return d.stream(resp.Body, path, size)
}

func (d *Downloader) fetchMultipart(ctx context.Context, c *domain.Content, path string, size int64) (domain.ErrorKind, string) {
	res, err := d.multipart.Download(ctx, c.URL, path, size)
	switch {
	case err != nil:
		return domain.UnknownError, err.Error()
	case d.HardStopped():
		return domain.DownloadStopped, "download stopped by user"
	case res.Failed > 0:
		pct := float64(res.Failed) / float64(res.Parts) * 100
		return domain.MultipartFailure, fmt.Sprintf("%.1f%% of %d parts failed: %v", pct, res.Parts, res.ChunkErr)
	}
	return domain.NoError, ""
}

// stream copies body to path in fixed size chunks, checking the hard stop
// flag between chunks. A stopped download leaves the partial file.
func (d *Downloader) stream(body io.Reader, path string, size int64) (domain.ErrorKind, string) {
	f, err := os.Create(path)
	if err != nil {
		return domain.UnknownError, fmt.Sprintf("failed to create file: %v", err)
	}
	defer f.Close()

	buf := make([]byte, writeBufferSize)
	var written int64
	for {
		if d.HardStopped() {
			return domain.DownloadStopped, fmt.Sprintf("download stopped by user after %d bytes", written)
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return domain.UnknownError, fmt.Sprintf("failed to write file: %v", err)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return httpclient.Kind(rerr), rerr.Error()
		}
	}
	if err := f.Close(); err != nil {
		return domain.UnknownError, fmt.Sprintf("failed to close file: %v", err)
	}

	if size < 0 && written < d.deps.Env.Settings.MinFileSize {
		os.Remove(path)
		return domain.DoesNotExist, fmt.Sprintf("response of %d bytes is below the minimum file size", written)
	}
	return domain.NoError, ""
}

func (d *Downloader) finish(ctx context.Context, c *domain.Content, path string) {
	env := d.deps.Env
	if env.Settings.MatchDateModified {
		if post, err := env.Store.GetPost(ctx, c.PostID); err == nil && !post.DatePosted.IsZero() {
			if err := os.Chtimes(path, post.DatePosted, post.DatePosted); err != nil {
				d.log.WithError(err).WithField("save_path", path).Warn("Failed to set file modification time")
			}
		}
	}
	if err := env.Store.MarkContentDownloaded(context.WithoutCancel(ctx), c.ID, env.SessionID); err != nil {
		d.log.WithError(err).WithField("content_id", c.ID).Error("Failed to mark content downloaded")
		return
	}
	d.downloaded.Add(1)
	d.deps.Sink.Debug("Downloaded %s", c.FileName())
}

func (d *Downloader) fail(ctx context.Context, c *domain.Content, path string, kind domain.ErrorKind, msg string) {
	env := d.deps.Env
	if _, err := os.Stat(path); os.IsNotExist(err) {
		env.Names.Release(c.DirectoryPath, c.DownloadTitle, c.Extension)
	}

	fields := logrus.Fields{
		"url":        c.URL,
		"title":      c.Title,
		"user":       c.UserName,
		"subreddit":  c.SubredditName,
		"save_path":  path,
		"error_kind": kind.String(),
	}
	if post, err := env.Store.GetPost(ctx, c.PostID); err == nil {
		fields["submission_id"] = post.RedditID
	}
	d.log.WithFields(fields).Error(msg)

	if err := env.Store.MarkContentFailed(context.WithoutCancel(ctx), c.ID, kind, msg); err != nil {
		d.log.WithError(err).WithField("content_id", c.ID).Error("Failed to record download failure")
	}
	d.deps.Sink.Error("Failed to download %s: %s", c.URL, msg)
}
