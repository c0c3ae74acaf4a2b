package domain

import "fmt"

// ErrorKind classifies why an extraction or a download failed. The zero value
// means no error has been recorded.
type ErrorKind int

const (
	NoError ErrorKind = iota
	UnsupportedDomain
	ConnectionError
	UnknownError
	FailedToLocate
	UnrecognizedExtension
	FailedFilter
	DoesNotExist
	Forbidden
	RateLimitError
	CreditError
	UnsuccessfulResponse
	DownloadStopped
	MultipartFailure
	TextLinkFailure
)

var errorKindNames = map[ErrorKind]string{
	NoError:               "",
	UnsupportedDomain:     "UNSUPPORTED_DOMAIN",
	ConnectionError:       "CONNECTION_ERROR",
	UnknownError:          "UNKNOWN_ERROR",
	FailedToLocate:        "FAILED_TO_LOCATE",
	UnrecognizedExtension: "UNRECOGNIZED_EXTENSION",
	FailedFilter:          "FAILED_FILTER",
	DoesNotExist:          "DOES_NOT_EXIST",
	Forbidden:             "FORBIDDEN",
	RateLimitError:        "RATE_LIMIT_ERROR",
	CreditError:           "CREDIT_ERROR",
	UnsuccessfulResponse:  "UNSUCCESSFUL_RESPONSE",
	DownloadStopped:       "DOWNLOAD_STOPPED",
	MultipartFailure:      "MULTIPART_FAILURE",
	TextLinkFailure:       "TEXT_LINK_FAILURE",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseErrorKind is the inverse of ErrorKind.String. The empty string maps
// to NoError.
func ParseErrorKind(s string) (ErrorKind, error) {
	for kind, name := range errorKindNames {
		if name == s {
			return kind, nil
		}
	}
	return NoError, fmt.Errorf("unknown error kind %q", s)
}
