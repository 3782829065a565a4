package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

func TestLoadCoalescer_ConcurrentCallsShareOneLoad(t *testing.T) {
	lc := newLoadCoalescer(5 * time.Second)
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (models.Document, error) {
		calls.Add(1)
		<-release
		return models.Document{City: "Durban", Date: "2024-10-19"}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	var shared atomic.Int32
	docs := make([]models.Document, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var s bool
			docs[i], s, errs[i] = lc.Do(context.Background(), "Durban-2024-10-19", fn)
			if s {
				shared.Add(1)
			}
		}(i)
	}
	// The load blocks on release, so every goroutine joins it before it finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range docs {
		if errs[i] != nil || docs[i].City != "Durban" {
			t.Errorf("caller %d = %+v, %v", i, docs[i], errs[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}
	if got := shared.Load(); got != n-1 {
		t.Errorf("shared callers = %d, want %d", got, n-1)
	}
}

func TestLoadCoalescer_ErrorPropagates(t *testing.T) {
	lc := newLoadCoalescer(time.Second)
	boom := errors.New("disk gone")
	_, _, err := lc.Do(context.Background(), "k", func(context.Context) (models.Document, error) {
		return models.Document{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do() error = %v, want %v", err, boom)
	}
}

func TestLoadCoalescer_KeyReleasedAfterLoad(t *testing.T) {
	lc := newLoadCoalescer(time.Second)
	var calls atomic.Int32
	fn := func(context.Context) (models.Document, error) {
		calls.Add(1)
		return models.Document{}, nil
	}
	for i := 0; i < 3; i++ {
		if _, _, err := lc.Do(context.Background(), "k", fn); err != nil {
			t.Fatal(err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("sequential loads = %d, want 3", got)
	}
}

func TestLoadCoalescer_CallerTimeout(t *testing.T) {
	lc := newLoadCoalescer(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	_, _, err := lc.Do(context.Background(), "slow", func(ctx context.Context) (models.Document, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return models.Document{}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want DeadlineExceeded", err)
	}
}

func TestLoadCoalescer_CanceledCallerDoesNotFailOthers(t *testing.T) {
	lc := newLoadCoalescer(time.Second)
	release := make(chan struct{})
	fn := func(context.Context) (models.Document, error) {
		<-release
		return models.Document{City: "Jhb"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := lc.Do(ctx, "k", fn)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller error = %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	doc, _, err := lc.Do(context.Background(), "k", fn)
	if err != nil || doc.City != "Jhb" {
		t.Errorf("second caller = %+v, %v", doc, err)
	}
}
