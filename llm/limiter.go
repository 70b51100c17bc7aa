// Concurrency limiting for the question-answering clients.
//
// Information Hiding:
// - Semaphore acquisition and release around each remote call
// - Cancellation while waiting for a slot

package llm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type limitedVision struct {
	inner VisionProvider
	sem   *semaphore.Weighted
}

type limitedVideo struct {
	inner VideoProvider
	sem   *semaphore.Weighted
}

// NewLimiter returns a semaphore admitting n concurrent calls, or nil for n <= 0.
func NewLimiter(n int) *semaphore.Weighted {
	if n <= 0 {
		return nil
	}
	return semaphore.NewWeighted(int64(n))
}

// LimitVision wraps v so at most the semaphore's weight of calls run at once.
// A nil semaphore returns v unchanged.
func LimitVision(v VisionProvider, sem *semaphore.Weighted) VisionProvider {
	if v == nil || sem == nil {
		return v
	}
	return &limitedVision{inner: v, sem: sem}
}

// LimitVideo is LimitVision for video clients.
func LimitVideo(v VideoProvider, sem *semaphore.Weighted) VideoProvider {
	if v == nil || sem == nil {
		return v
	}
	return &limitedVideo{inner: v, sem: sem}
}

func (l *limitedVision) AnswerImageQuestion(ctx context.Context, image Image, question string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.inner.AnswerImageQuestion(ctx, image, question)
}

func (l *limitedVideo) AnswerVideoQuestion(ctx context.Context, videoID, question string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.inner.AnswerVideoQuestion(ctx, videoID, question)
}
