package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/warden/internal/adapters/mq/queue"
	"github.com/okian/warden/internal/adapters/mq/worker"
	"github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type fakeIngestor struct {
	mu       sync.Mutex
	inserted []string
	failOn   map[string]error
}

func (f *fakeIngestor) InsertEvent(_ context.Context, ev worker.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[ev.ID]; ok {
		return err
	}
	f.inserted = append(f.inserted, ev.ID)
	return nil
}

func (f *fakeIngestor) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inserted...)
}

type fakeDeduper struct {
	mu         sync.Mutex
	unrecorded []string
}

func (f *fakeDeduper) Unrecord(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unrecorded = append(f.unrecorded, id)
}

func (f *fakeDeduper) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unrecorded...)
}

type fakeRescorer struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (f *fakeRescorer) Rescore(_ context.Context, userID, warrantyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, [2]string{userID, warrantyID})
}

func (f *fakeRescorer) seen() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.pairs...)
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}

func TestIngestWorker(t *testing.T) {
	Convey("Given a worker draining the queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ingestor := &fakeIngestor{failOn: map[string]error{}}
		deduper := &fakeDeduper{}
		rescorer := &fakeRescorer{}
		w := worker.NewIngestWorker(q, deduper, ingestor, worker.WithRescorer(rescorer))
		go w.Run(ctx)

		Convey("When a fresh event is queued", func() {
			So(q.Enqueue(ctx, worker.Event{ID: "ev-1", UserID: "u1", WarrantyID: "w1"}), ShouldBeNil)

			Convey("Then it should be inserted and trigger a rescore", func() {
				So(eventually(func() bool { return len(ingestor.ids()) == 1 }), ShouldBeTrue)
				So(ingestor.ids(), ShouldResemble, []string{"ev-1"})
				So(eventually(func() bool { return len(rescorer.seen()) == 1 }), ShouldBeTrue)
				So(rescorer.seen()[0], ShouldResemble, [2]string{"u1", "w1"})
				So(deduper.ids(), ShouldBeEmpty)
			})
		})

		Convey("When the store flags a duplicate", func() {
			ingestor.failOn["ev-dup"] = repository.ErrDuplicateEvent
			So(q.Enqueue(ctx, worker.Event{ID: "ev-dup"}), ShouldBeNil)
			So(q.Enqueue(ctx, worker.Event{ID: "ev-after"}), ShouldBeNil)

			Convey("Then the duplicate should be dropped quietly", func() {
				So(eventually(func() bool { return len(ingestor.ids()) == 1 }), ShouldBeTrue)
				So(ingestor.ids(), ShouldResemble, []string{"ev-after"})
				// Duplicates keep their id recorded; no retry is expected.
				So(deduper.ids(), ShouldBeEmpty)
				So(rescorer.seen(), ShouldHaveLength, 1)
			})
		})

		Convey("When the insert fails", func() {
			ingestor.failOn["ev-bad"] = errors.New("disk full")
			So(q.Enqueue(ctx, worker.Event{ID: "ev-bad"}), ShouldBeNil)

			Convey("Then the id should be released for retry", func() {
				So(eventually(func() bool { return len(deduper.ids()) == 1 }), ShouldBeTrue)
				So(deduper.ids(), ShouldResemble, []string{"ev-bad"})
				So(ingestor.ids(), ShouldBeEmpty)
				So(rescorer.seen(), ShouldBeEmpty)
			})
		})

		Convey("When the worker shuts down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			Convey("Then Shutdown should return promptly", func() {
				So(w.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})

		Reset(func() {
			cancel()
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers over one queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		ingestor := &fakeIngestor{}
		deduper := &fakeDeduper{}
		pool := worker.NewPool(3, q, deduper, ingestor)
		pool.Start(ctx)

		Convey("When events are queued", func() {
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				So(q.Enqueue(ctx, worker.Event{ID: id}), ShouldBeNil)
			}

			Convey("Then every event should be ingested exactly once", func() {
				So(eventually(func() bool { return len(ingestor.ids()) == 5 }), ShouldBeTrue)
				seen := map[string]int{}
				for _, id := range ingestor.ids() {
					seen[id]++
				}
				for _, id := range []string{"a", "b", "c", "d", "e"} {
					So(seen[id], ShouldEqual, 1)
				}
			})
		})

		Convey("When the pool shuts down", func() {
			err := pool.Shutdown(ctx)

			Convey("Then the queue should be closed and enqueues rejected", func() {
				So(err, ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, worker.Event{ID: "late"}), ShouldEqual, queue.ErrClosed)
			})
		})
	})
}
