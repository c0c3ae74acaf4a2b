package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"cloudeng.io/errors"
	"cloudeng.io/sync/errgroup"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

// loggedChunkFailures is how many chunk failures of one download are logged
// individually before switching to a single aggregate notice.
const loggedChunkFailures = 3

// ByteRange is an inclusive range of byte offsets.
type ByteRange struct {
	From, To int64
}

// Size returns the number of bytes in the range.
func (r ByteRange) Size() int64 {
	return r.To - r.From + 1
}

func (r ByteRange) header() string {
	return "bytes=" + strconv.FormatInt(r.From, 10) + "-" + strconv.FormatInt(r.To, 10)
}

// Ranges splits [0, size) into chunk sized ranges, the last one holding the
// remainder.
func Ranges(size, chunk int64) []ByteRange {
	if size <= 0 || chunk <= 0 {
		return nil
	}
	out := make([]ByteRange, 0, (size+chunk-1)/chunk)
	for from := int64(0); from < size; from += chunk {
		to := from + chunk - 1
		if to >= size {
			to = size - 1
		}
		out = append(out, ByteRange{From: from, To: to})
	}
	return out
}

// MultipartDownloader fetches a large file as concurrent range requests.
// Chunks fail independently; assembly is best effort.
type MultipartDownloader struct {
	runner.Base
	client    *httpclient.HTTPClient
	chunkSize int64
	workers   int
	retries   int
	backoff   time.Duration
	log       logrus.FieldLogger
}

// NewMultipartDownloader creates a downloader using cfg for chunk size,
// concurrency and per-chunk retries.
func NewMultipartDownloader(client *httpclient.HTTPClient, cfg config.MultipartConfig, signal *runner.Signal, log logrus.FieldLogger) *MultipartDownloader {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &MultipartDownloader{
		Base:      runner.Base{Signal: signal},
		client:    client,
		chunkSize: cfg.ChunkSize,
		workers:   workers,
		retries:   cfg.Retries,
		backoff:   200 * time.Millisecond,
		log:       log,
	}
}

// Result describes a finished multipart download.
type Result struct {
	Parts  int
	Failed int
	// ChunkErr aggregates the errors of the parts that could not be fetched.
	ChunkErr error
}

// Download writes url to dest. Failed parts are left out of dest and
// reported in the Result. A non-nil error means dest could not be assembled
// at all.
func (m *MultipartDownloader) Download(ctx context.Context, url, dest string, size int64) (Result, error) {
	ranges := Ranges(size, m.chunkSize)
	partDir := filepath.Join(filepath.Dir(dest), ".parts-"+uuid.NewString())
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		return Result{Parts: len(ranges), Failed: len(ranges)}, fmt.Errorf("failed to create part directory: %w", err)
	}
	defer os.RemoveAll(partDir)

	log := m.log.WithFields(logrus.Fields{"url": url, "parts": len(ranges)})
	var (
		errs     errors.M
		failures atomic.Int64
	)
	g := &errgroup.T{}
	g = errgroup.WithConcurrency(g, m.workers)
	for i, r := range ranges {
		g.Go(func() error {
			if err := m.fetchPart(ctx, url, partPath(partDir, i), r); err != nil {
				n := failures.Add(1)
				errs.Append(fmt.Errorf("part %d (%s): %w", i, r.header(), err))
				switch {
				case n <= loggedChunkFailures:
					log.WithError(err).WithField("part", i).Warn("Chunk download failed")
				case n == loggedChunkFailures+1:
					log.Warn("Multiple chunks failed, no further chunk failures will be logged for this download")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Parts: len(ranges), Failed: int(failures.Load()), ChunkErr: errs.Err()}
	if err := assemble(dest, partDir, len(ranges), log); err != nil {
		return res, err
	}
	return res, nil
}

func partPath(dir string, i int) string {
	return filepath.Join(dir, strconv.Itoa(i)+".part")
}

// fetchPart downloads one range, retrying timeouts and truncated bodies.
// A part that still fails is removed so assembly skips it.
func (m *MultipartDownloader) fetchPart(ctx context.Context, url, path string, r ByteRange) error {
	if !m.Continue() {
		return fmt.Errorf("download stopped")
	}
	b := retry.WithMaxRetries(uint64(m.retries), retry.NewExponential(m.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if m.HardStopped() {
			return fmt.Errorf("download stopped")
		}
		err := m.getRange(ctx, url, path, r)
		if httpclient.Transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		os.Remove(path)
	}
	return err
}

func (m *MultipartDownloader) getRange(ctx context.Context, url, path string, r ByteRange) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", r.header())
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return &httpclient.StatusError{Code: resp.StatusCode, URL: url}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n != r.Size() {
		return fmt.Errorf("got %d of %d bytes: %w", n, r.Size(), io.ErrUnexpectedEOF)
	}
	return nil
}

// assemble concatenates the parts in order into dest, removing each part
// once copied. Missing parts are skipped.
func assemble(dest, partDir string, n int, log logrus.FieldLogger) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	for i := 0; i < n; i++ {
		path := partPath(partDir, i)
		in, err := os.Open(path)
		if err != nil {
			log.WithField("part", i).Debug("Part missing at assembly, skipping")
			continue
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("failed to append part %d: %w", i, err)
		}
		os.Remove(path)
	}
	return out.Close()
}
