package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + i/7)
	}
	return data
}

func serveBytes(data []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(data))
	})
}

func newMultipart(retries int) *MultipartDownloader {
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := NewMultipartDownloader(httpclient.NewClient(httpclient.BrowserClient),
		config.MultipartConfig{ChunkSize: 3000, Workers: 3, Retries: retries}, runner.NewSignal(), log)
	m.backoff = time.Millisecond
	return m
}

func TestRanges(t *testing.T) {
	tests := []struct {
		size, chunk int64
		want        []ByteRange
	}{
		{10, 3, []ByteRange{{0, 2}, {3, 5}, {6, 8}, {9, 9}}},
		{9, 3, []ByteRange{{0, 2}, {3, 5}, {6, 8}}},
		{2, 5, []ByteRange{{0, 1}}},
		{0, 5, nil},
	}
	for _, tt := range tests {
		got := Ranges(tt.size, tt.chunk)
		if len(got) != len(tt.want) {
			t.Fatalf("Ranges(%d, %d): expected %v, got %v", tt.size, tt.chunk, tt.want, got)
		}
		var total int64
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Ranges(%d, %d): expected %v, got %v", tt.size, tt.chunk, tt.want, got)
			}
			total += got[i].Size()
		}
		if total != tt.size {
			t.Fatalf("Expected ranges to cover %d bytes, got %d", tt.size, total)
		}
	}
}

func TestMultipartReassembly(t *testing.T) {
	for _, size := range []int{9000, 10001, 2999} {
		data := payload(size)
		server := httptest.NewServer(serveBytes(data))
		dest := filepath.Join(t.TempDir(), "out.bin")

		res, err := newMultipart(2).Download(context.Background(), server.URL, dest, int64(size))
		server.Close()
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		if res.Failed != 0 || res.ChunkErr != nil || res.Parts != int((size+2999)/3000) {
			t.Fatalf("Expected %d clean parts, got %+v", (size+2999)/3000, res)
		}
		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("Reassembled file of %d bytes differs from the source", size)
		}
		entries, _ := os.ReadDir(filepath.Dir(dest))
		if len(entries) != 1 {
			t.Fatalf("Expected part directory to be removed, found %d entries", len(entries))
		}
	}
}

func TestMultipartChunkFailureIsIsolated(t *testing.T) {
	data := payload(10000)
	serve := serveBytes(data)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Range"), "bytes=3000-") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		serve.ServeHTTP(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	res, err := newMultipart(1).Download(context.Background(), server.URL, dest, int64(len(data)))
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if res.Parts != 4 || res.Failed != 1 {
		t.Fatalf("Expected 4 parts with 1 failure, got parts=%d failed=%d", res.Parts, res.Failed)
	}
	if res.ChunkErr == nil || !strings.Contains(res.ChunkErr.Error(), "bytes=3000-5999") {
		t.Fatalf("Expected the chunk error to name the failed range, got %v", res.ChunkErr)
	}
	got, _ := os.ReadFile(dest)
	want := append(append([]byte{}, data[:3000]...), data[6000:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("Expected the failed segment to be skipped, got %d bytes", len(got))
	}
}

func TestMultipartRetriesTruncatedChunk(t *testing.T) {
	data := payload(6000)
	serve := serveBytes(data)
	var truncated atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "bytes=0-2999" && truncated.CompareAndSwap(false, true) {
			conn, buf, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("Hijack failed: %v", err)
				return
			}
			buf.WriteString("HTTP/1.1 206 Partial Content\r\nContent-Length: 3000\r\nContent-Range: bytes 0-2999/6000\r\n\r\n")
			buf.Write(data[:100])
			buf.Flush()
			conn.Close()
			return
		}
		serve.ServeHTTP(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	res, err := newMultipart(2).Download(context.Background(), server.URL, dest, int64(len(data)))
	if err != nil || res.Failed != 0 {
		t.Fatalf("Expected the truncated chunk to be retried, got failed=%d err=%v", res.Failed, err)
	}
	if !truncated.Load() {
		t.Fatalf("Expected the first request to be truncated")
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, data) {
		t.Fatalf("Reassembled file differs from the source")
	}
}

func TestMultipartDropsTruncatedChunkAfterRetries(t *testing.T) {
	data := payload(9000)
	serve := serveBytes(data)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=3000-5999" {
			serve.ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		buf.WriteString("HTTP/1.1 206 Partial Content\r\nContent-Length: 3000\r\nContent-Range: bytes 3000-5999/9000\r\n\r\n")
		buf.Write(data[3000:3100])
		buf.Flush()
		conn.Close()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	res, err := newMultipart(2).Download(context.Background(), server.URL, dest, int64(len(data)))
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Expected 1 failed part, got %d", res.Failed)
	}
	if n := attempts.Load(); n != 3 {
		t.Fatalf("Expected 3 attempts at the truncated range, got %d", n)
	}
	got, _ := os.ReadFile(dest)
	want := append(append([]byte{}, data[:3000]...), data[6000:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("Expected the truncated segment to be left out, got %d bytes", len(got))
	}
}
