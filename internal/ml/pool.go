package ml

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// SegmenterPool bounds the number of concurrently open segmenter sessions.
//
// Each prepared image pins an embedding on the inference side, so requests
// lease a slot before Prepare and give it back when the session is closed.
// SegmenterPool is itself a Segmenter and is safe for concurrent use.
type SegmenterPool struct {
	segmenter Segmenter
	sem       *semaphore.Weighted
	size      int
	inUse     atomic.Int64
}

// NewSegmenterPool wraps segmenter with size session slots. Sizes below one
// are raised to one.
func NewSegmenterPool(segmenter Segmenter, size int) *SegmenterPool {
	if size < 1 {
		size = 1
	}
	return &SegmenterPool{
		segmenter: segmenter,
		sem:       semaphore.NewWeighted(int64(size)),
		size:      size,
	}
}

// Size returns the number of session slots.
func (p *SegmenterPool) Size() int {
	return p.size
}

// InUse returns the number of sessions currently leased.
func (p *SegmenterPool) InUse() int {
	return int(p.inUse.Load())
}

// Prepare waits for a free slot, then prepares img on the wrapped segmenter.
// The slot is returned when the session is closed, or immediately if Prepare
// fails. Waiting stops with ctx's error when ctx is done.
func (p *SegmenterPool) Prepare(ctx context.Context, img image.Image) (SegmentSession, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Add(1)

	session, err := p.segmenter.Prepare(ctx, img)
	if err != nil {
		p.release()
		return nil, err
	}
	return &pooledSession{SegmentSession: session, pool: p}, nil
}

func (p *SegmenterPool) release() {
	p.inUse.Add(-1)
	p.sem.Release(1)
}

type pooledSession struct {
	SegmentSession
	pool *SegmenterPool
	once sync.Once
}

// Close closes the underlying session and frees the slot. Repeated calls are
// no-ops.
func (s *pooledSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.SegmentSession.Close()
		s.pool.release()
	})
	return err
}
