package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("output_dir: "+dir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.OutputDir != dir {
		t.Fatalf("Expected output dir %s, got %s", dir, s.OutputDir)
	}
	if s.MinFileSize != 1024 {
		t.Fatalf("Expected min file size 1024, got %d", s.MinFileSize)
	}
	if s.RequestTimeout != 10*time.Second {
		t.Fatalf("Expected 10s timeout, got %v", s.RequestTimeout)
	}
	if s.Multipart.Retries != 3 {
		t.Fatalf("Expected 3 multipart retries, got %d", s.Multipart.Retries)
	}
	if !s.Defaults.AvoidDuplicates || s.Defaults.SelfPostFormat != domain.FormatText {
		t.Fatalf("Unexpected object defaults: %+v", s.Defaults)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
download_threads: 8
extractors:
  imgur: false
defaults:
  comment_sort: "q&a"
  date_limit: "2020-01-02T03:04:05Z"
  max_comment_depth: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.DownloadThreads != 8 {
		t.Fatalf("Expected 8 download threads, got %d", s.DownloadThreads)
	}
	if s.ExtractorEnabled("imgur") {
		t.Fatalf("Expected imgur to be disabled")
	}
	if !s.ExtractorEnabled("direct") {
		t.Fatalf("Expected unlisted extractor to be enabled")
	}
	if s.Defaults.CommentSort != domain.SortQA {
		t.Fatalf("Expected q&a sort, got %v", s.Defaults.CommentSort)
	}
	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if !s.Defaults.DateLimit.Equal(want) {
		t.Fatalf("Expected date limit %v, got %v", want, s.Defaults.DateLimit)
	}
	if s.Defaults.MaxCommentDepth != 3 {
		t.Fatalf("Expected depth 3, got %d", s.Defaults.MaxCommentDepth)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RDL_MULTIPART_CHUNK_SIZE", "2048")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Multipart.ChunkSize != 2048 {
		t.Fatalf("Expected env chunk size 2048, got %d", s.Multipart.ChunkSize)
	}
	logger, err := s.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("Expected debug level, got %v", logger.GetLevel())
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Expected error for unsupported driver")
	}
}

func TestLoadListingMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("reddit:\n  listing: feed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Reddit.Listing != "feed" || s.YTDLP.Format != "best" {
		t.Fatalf("Unexpected reddit/ytdlp settings: %+v %+v", s.Reddit, s.YTDLP)
	}

	if err := os.WriteFile(path, []byte("reddit:\n  listing: scrape\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Expected error for unsupported listing mode")
	}
}

func TestSetExtractorEnabled(t *testing.T) {
	s := &Settings{}
	s.SetExtractorEnabled("vidble", false)
	if s.ExtractorEnabled("vidble") {
		t.Fatalf("Expected vidble disabled")
	}
	s.SetExtractorEnabled("vidble", true)
	if !s.ExtractorEnabled("vidble") {
		t.Fatalf("Expected vidble enabled")
	}
}
