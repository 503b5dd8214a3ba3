package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/warden/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))

		Convey("When enqueueing events", func() {
			So(q.Enqueue(ctx, queue.Event{ID: "ev-1"}), ShouldBeNil)
			So(q.Enqueue(ctx, queue.Event{ID: "ev-2"}), ShouldBeNil)

			Convey("Then they should be buffered in order", func() {
				So(q.Len(ctx), ShouldEqual, 2)

				out := q.Dequeue(ctx)
				first := <-out
				second := <-out
				So(first.ID, ShouldEqual, "ev-1")
				So(second.ID, ShouldEqual, "ev-2")
			})
		})

		Convey("When the queue closes with events still buffered", func() {
			So(q.Enqueue(ctx, queue.Event{ID: "ev-1"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then buffered events should still drain", func() {
				out := q.Dequeue(ctx)
				ev, ok := <-out
				So(ok, ShouldBeTrue)
				So(ev.ID, ShouldEqual, "ev-1")

				_, ok = <-out
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestBackpressure(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue at capacity", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		So(q.Enqueue(ctx, queue.Event{ID: "ev-1"}), ShouldBeNil)

		Convey("When another event arrives", func() {
			err := q.Enqueue(ctx, queue.Event{ID: "ev-2"})

			Convey("Then it should be rejected instead of blocking", func() {
				So(err, ShouldEqual, queue.ErrFull)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	Convey("Given a closed queue", t, func() {
		q := queue.NewInMemoryQueue()
		So(q.Close(), ShouldBeNil)

		Convey("When enqueueing", func() {
			err := q.Enqueue(ctx, queue.Event{ID: "ev-1"})

			Convey("Then the closed sentinel should come back", func() {
				So(err, ShouldEqual, queue.ErrClosed)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})

		Convey("When closing again", func() {
			Convey("Then it should be idempotent", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}

func TestDequeueCancellation(t *testing.T) {
	Convey("Given a consumer with a cancellable context", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		ctx, cancel := context.WithCancel(context.Background())
		out := q.Dequeue(ctx)

		Convey("When the context is cancelled while a delivery is pending", func() {
			So(q.Enqueue(context.Background(), queue.Event{ID: "ev-1"}), ShouldBeNil)
			cancel()
			// Give the consumer goroutine time to observe the cancellation
			// before anyone receives from the channel.
			time.Sleep(50 * time.Millisecond)

			Convey("Then the channel should close without delivering", func() {
				select {
				case _, ok := <-out:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel never closed")
				}
			})
		})

		Reset(func() { cancel() })
	})
}
