package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// StatusError is returned for responses with an unexpected status code
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.Code, http.StatusText(e.Code), e.URL)
}

// StatusKind maps an HTTP status code to an error kind.
func StatusKind(code int) domain.ErrorKind {
	switch code {
	case http.StatusOK:
		return domain.NoError
	case http.StatusNotFound, http.StatusGone:
		return domain.DoesNotExist
	case http.StatusForbidden:
		return domain.Forbidden
	case http.StatusTooManyRequests:
		return domain.RateLimitError
	default:
		return domain.UnsuccessfulResponse
	}
}

// Kind classifies a transport or status error.
func Kind(err error) domain.ErrorKind {
	if err == nil {
		return domain.NoError
	}
	var se *StatusError
	if errors.As(err, &se) {
		return StatusKind(se.Code)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return domain.ConnectionError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return domain.ConnectionError
	}
	return domain.UnknownError
}

// Transient reports whether err is worth retrying: timeouts and truncated
// bodies.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET)
}
