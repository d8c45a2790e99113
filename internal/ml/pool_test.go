package ml

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"
)

type countingSegmenter struct {
	prepared atomic.Int32
	closed   atomic.Int32
	fail     bool
}

func (s *countingSegmenter) Prepare(ctx context.Context, img image.Image) (SegmentSession, error) {
	if s.fail {
		return nil, errors.New("prepare failed")
	}
	s.prepared.Add(1)
	return &countingSession{parent: s}, nil
}

type countingSession struct {
	parent *countingSegmenter
}

func (s *countingSession) Predict(ctx context.Context, box Box) (*Prediction, error) {
	return &Prediction{Score: 1}, nil
}

func (s *countingSession) Close() error {
	s.parent.closed.Add(1)
	return nil
}

func TestSegmenterPool_LeaseAndRelease(t *testing.T) {
	seg := &countingSegmenter{}
	pool := NewSegmenterPool(seg, 2)

	if pool.Size() != 2 {
		t.Fatalf("Size: got %d, want 2", pool.Size())
	}

	img := testImage(4, 4)
	a, err := pool.Prepare(context.Background(), img)
	if err != nil {
		t.Fatalf("Prepare a: %v", err)
	}
	b, err := pool.Prepare(context.Background(), img)
	if err != nil {
		t.Fatalf("Prepare b: %v", err)
	}
	if pool.InUse() != 2 {
		t.Errorf("InUse: got %d, want 2", pool.InUse())
	}

	a.Close()
	a.Close()
	if pool.InUse() != 1 {
		t.Errorf("InUse after double close: got %d, want 1", pool.InUse())
	}
	if seg.closed.Load() != 1 {
		t.Errorf("underlying closes: got %d, want 1", seg.closed.Load())
	}

	b.Close()
	if pool.InUse() != 0 {
		t.Errorf("InUse after release: got %d, want 0", pool.InUse())
	}
}

func TestSegmenterPool_WaitHonoursContext(t *testing.T) {
	pool := NewSegmenterPool(&countingSegmenter{}, 1)
	img := testImage(4, 4)

	held, err := pool.Prepare(context.Background(), img)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer held.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := pool.Prepare(ctx, img); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSegmenterPool_FailedPrepareFreesSlot(t *testing.T) {
	pool := NewSegmenterPool(&countingSegmenter{fail: true}, 1)

	if _, err := pool.Prepare(context.Background(), testImage(4, 4)); err == nil {
		t.Fatal("expected prepare error")
	}
	if pool.InUse() != 0 {
		t.Errorf("InUse after failure: got %d, want 0", pool.InUse())
	}
}

func TestNewSegmenterPool_MinimumSize(t *testing.T) {
	if got := NewSegmenterPool(&countingSegmenter{}, 0).Size(); got != 1 {
		t.Errorf("Size: got %d, want 1", got)
	}
}

func TestSegmenterPool_CloseWakesWaiter(t *testing.T) {
	pool := NewSegmenterPool(&countingSegmenter{}, 1)
	img := testImage(4, 4)

	held, err := pool.Prepare(context.Background(), img)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		s, err := pool.Prepare(context.Background(), img)
		if err == nil {
			err = s.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second Prepare returned before a slot was free: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	held.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Close")
	}
	if pool.InUse() != 0 {
		t.Errorf("InUse: got %d, want 0", pool.InUse())
	}
}
