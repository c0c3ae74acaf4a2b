package merge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// Registry collects video/audio pairs during a session. It is append-only
// until Drain is called after both stages have finished.
type Registry struct {
	mu   sync.Mutex
	sets []domain.MergeSet
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a pair to mux once both files are downloaded.
func (r *Registry) Add(videoID, audioID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, domain.MergeSet{VideoID: videoID, AudioID: audioID, Created: time.Now()})
}

// Len returns the number of pending pairs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// Drain returns every pending pair and empties the registry.
func (r *Registry) Drain() []domain.MergeSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	sets := r.sets
	r.sets = nil
	return sets
}

// ContentLoader is the store query used to locate downloaded files
type ContentLoader interface {
	GetContent(ctx context.Context, id int64) (*domain.Content, error)
}

// RunFunc executes the mux command. It exists so tests can avoid ffmpeg.
type RunFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, lastLine(out))
	}
	return nil
}

func lastLine(out []byte) string {
	s := string(out)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}

// Muxer combines each downloaded video with its audio track using ffmpeg
type Muxer struct {
	FFmpeg string
	Store  ContentLoader
	Log    logrus.FieldLogger
	Run    RunFunc
}

// NewMuxer creates a muxer using the ffmpeg binary at path
func NewMuxer(path string, store ContentLoader, log logrus.FieldLogger) *Muxer {
	return &Muxer{FFmpeg: path, Store: store, Log: log, Run: execRun}
}

// Path returns the on-disk location of downloaded content.
func Path(c *domain.Content) string {
	return filepath.Join(c.DirectoryPath, c.FileName())
}

// MergeAll muxes every set and returns how many succeeded. Failures are
// logged and leave both files in place.
func (m *Muxer) MergeAll(ctx context.Context, sets []domain.MergeSet) int {
	merged := 0
	for _, set := range sets {
		if ctx.Err() != nil {
			break
		}
		if err := m.merge(ctx, set); err != nil {
			m.Log.WithFields(logrus.Fields{
				"video_id": set.VideoID,
				"audio_id": set.AudioID,
			}).WithError(err).Warn("Failed to merge video and audio")
			continue
		}
		merged++
	}
	return merged
}

func (m *Muxer) merge(ctx context.Context, set domain.MergeSet) error {
	video, err := m.Store.GetContent(ctx, set.VideoID)
	if err != nil {
		return fmt.Errorf("load video content: %w", err)
	}
	audio, err := m.Store.GetContent(ctx, set.AudioID)
	if err != nil {
		return fmt.Errorf("load audio content: %w", err)
	}
	if !video.Downloaded || !audio.Downloaded {
		return fmt.Errorf("video or audio was not downloaded")
	}

	videoPath, audioPath := Path(video), Path(audio)
	out := filepath.Join(video.DirectoryPath, video.DownloadTitle+".merged."+video.Extension)
	if err := m.Run(ctx, m.FFmpeg, "-y", "-i", videoPath, "-i", audioPath, "-c", "copy", out); err != nil {
		_ = os.Remove(out)
		return err
	}
	if err := os.Rename(out, videoPath); err != nil {
		return fmt.Errorf("replace video with merged file: %w", err)
	}
	if err := os.Remove(audioPath); err != nil {
		m.Log.WithError(err).WithField("path", audioPath).Warn("Failed to remove merged audio file")
	}
	m.Log.WithField("path", videoPath).Debug("Merged video and audio")
	return nil
}
