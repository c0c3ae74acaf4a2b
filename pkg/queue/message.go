package queue

import (
	"fmt"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
)

// Control is the kind of a queue message.
type Control int

const (
	// Data carries a payload to process.
	Data Control = iota
	// Hold pauses forwarding of new work downstream.
	Hold
	// ReleaseHold resumes forwarding and is propagated downstream.
	ReleaseHold
	// Stop drains the stage and is propagated downstream once drained.
	Stop
)

func (c Control) String() string {
	switch c {
	case Hold:
		return "HOLD"
	case ReleaseHold:
		return "RELEASE_HOLD"
	case Stop:
		return "STOP"
	default:
		return "DATA"
	}
}

// Message is one element of a stage queue.
type Message[T any] struct {
	Control Control
	Payload T
}

func (m Message[T]) String() string {
	if m.Control == Data {
		return fmt.Sprintf("%v", m.Payload)
	}
	return m.Control.String()
}

// Item wraps a payload.
func Item[T any](payload T) Message[T] {
	return Message[T]{Control: Data, Payload: payload}
}

// HoldMessage returns a HOLD control message.
func HoldMessage[T any]() Message[T] { return Message[T]{Control: Hold} }

// ReleaseMessage returns a RELEASE_HOLD control message.
func ReleaseMessage[T any]() Message[T] { return Message[T]{Control: ReleaseHold} }

// StopMessage returns the drain-and-stop sentinel.
func StopMessage[T any]() Message[T] { return Message[T]{Control: Stop} }

// WorkKind distinguishes new submissions from interrupted posts.
type WorkKind int

const (
	Submission WorkKind = iota
	ResumePost
)

func (k WorkKind) String() string {
	if k == ResumePost {
		return "RESUME_POST"
	}
	return "SUBMISSION"
}

// Work is the payload of the submission queue.
type Work struct {
	Kind          WorkKind
	Submission    *reddit.Submission
	PostID        int64
	SignificantID int64
}

func (w Work) String() string {
	if w.Kind == ResumePost {
		return fmt.Sprintf("(%v, %d, %d)", w.Kind, w.PostID, w.SignificantID)
	}
	id := ""
	if w.Submission != nil {
		id = w.Submission.ID
	}
	return fmt.Sprintf("(%v, %s, %d)", w.Kind, id, w.SignificantID)
}

// SubmissionQueue feeds the extraction stage.
type SubmissionQueue = Queue[Message[Work]]

// DownloadQueue feeds the download stage with content ids.
type DownloadQueue = Queue[Message[int64]]

// NewSubmission wraps a newly listed submission.
func NewSubmission(sub *reddit.Submission, significantID int64) Message[Work] {
	return Item(Work{Kind: Submission, Submission: sub, SignificantID: significantID})
}

// Resume wraps an interrupted post for re-extraction.
func Resume(postID, significantID int64) Message[Work] {
	return Item(Work{Kind: ResumePost, PostID: postID, SignificantID: significantID})
}
