package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tabletriage/internal/adapters/mq/queue"
	"github.com/okian/tabletriage/internal/adapters/mq/worker"
	"github.com/okian/tabletriage/internal/domain/model"
	logging "github.com/okian/tabletriage/pkg/logger"
)

type mockProcessor struct {
	mu    sync.Mutex
	seen  []string
	panic map[string]bool
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{panic: make(map[string]bool)}
}

func (m *mockProcessor) Triage(_ context.Context, d model.Dossier) model.Result {
	m.mu.Lock()
	m.seen = append(m.seen, d.Source)
	boom := m.panic[d.Source]
	m.mu.Unlock()
	if boom {
		panic("processor exploded")
	}
	return model.Result{Source: d.Source, ProcessedCount: len(d.Tables)}
}

func (m *mockProcessor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func await(t *testing.T, ch <-chan model.Result) model.Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return model.Result{}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		proc := newMockProcessor()
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is enqueued", func() {
			job, reply := queue.NewJob(model.Dossier{Source: "doc-1", Tables: make([]model.RawTable, 2)})
			convey.So(q.Enqueue(ctx, job), convey.ShouldBeNil)

			convey.Convey("Then the result is sent on the reply channel", func() {
				res := await(t, reply)
				convey.So(res.Source, convey.ShouldEqual, "doc-1")
				convey.So(res.ProcessedCount, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the processor panics", func() {
			proc.panic["bad"] = true
			bad, badReply := queue.NewJob(model.Dossier{Source: "bad", Filename: "bad.json"})
			good, goodReply := queue.NewJob(model.Dossier{Source: "good"})
			convey.So(q.Enqueue(ctx, bad), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, good), convey.ShouldBeNil)

			convey.Convey("Then an empty result is returned and the worker keeps going", func() {
				res := await(t, badReply)
				convey.So(res.Source, convey.ShouldEqual, "bad")
				convey.So(*res.Filename, convey.ShouldEqual, "bad.json")
				convey.So(res.Processed, convey.ShouldBeEmpty)
				convey.So(res.Skipped, convey.ShouldNotBeNil)

				convey.So(await(t, goodReply).Source, convey.ShouldEqual, "good")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		proc := newMockProcessor()
		pool := worker.NewPool(3, q, proc)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When many jobs are submitted", func() {
			names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
			replies := make([]<-chan model.Result, len(names))
			for i, name := range names {
				job, reply := queue.NewJob(model.Dossier{Source: name})
				convey.So(q.Enqueue(ctx, job), convey.ShouldBeNil)
				replies[i] = reply
			}

			convey.Convey("Then each reply channel carries its own dossier", func() {
				for i, name := range names {
					convey.So(await(t, replies[i]).Source, convey.ShouldEqual, name)
				}
				convey.So(proc.count(), convey.ShouldEqual, len(names))
			})

			convey.Convey("Then shutdown drains and closes the queue", func() {
				for i := range names {
					await(t, replies[i])
				}
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockProcessor())

		convey.Convey("Then at least one worker is created", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
		})
	})
}
