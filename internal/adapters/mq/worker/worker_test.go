package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/tvi/internal/adapters/mq/queue"
	worker "github.com/okian/tvi/internal/adapters/mq/worker"
	model "github.com/okian/tvi/internal/domain/model"
	profile "github.com/okian/tvi/internal/domain/profile"
	zone "github.com/okian/tvi/internal/domain/zone"
	logging "github.com/okian/tvi/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	taskChan chan queue.Task
	once     sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{taskChan: make(chan queue.Task, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Task {
	return mq.taskChan
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.taskChan) })
	return nil
}

type mockBuilder struct {
	errors map[string]error
	mu     sync.Mutex
	calls  int
}

func newMockBuilder() *mockBuilder {
	return &mockBuilder{errors: make(map[string]error)}
}

func (mb *mockBuilder) Build(ctx context.Context, p profile.Partition) ([]profile.Profile, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.calls++
	if err, ok := mb.errors[p.GameID]; ok {
		return nil, err
	}
	out := make([]profile.Profile, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, profile.Profile{Key: e.Key(), Counts: map[string]int{e.EventName: 1}})
	}
	return out, nil
}

func partition(game string, players ...string) profile.Partition {
	p := profile.Partition{GameID: game}
	for _, id := range players {
		p.Events = append(p.Events, model.RawActionEvent{GameID: game, TeamID: "t1", PlayerID: id, EventName: "Tackle"})
	}
	return p
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		builder := newMockBuilder()
		results := make(chan worker.Result, 10)

		w := worker.NewInMemoryWorker(q, builder, results, worker.WithName("test-worker"))

		convey.Convey("When a partition is queued and the queue closes", func() {
			q.taskChan <- queue.Task{Index: 3, Partition: partition("g1", "p1", "p2")}
			_ = q.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			w.Run(ctx)

			convey.Convey("Then its profiles are emitted with the task index", func() {
				convey.So(len(results), convey.ShouldEqual, 1)
				r := <-results
				convey.So(r.Err, convey.ShouldBeNil)
				convey.So(r.Index, convey.ShouldEqual, 3)
				convey.So(r.GameID, convey.ShouldEqual, "g1")
				convey.So(len(r.Profiles), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the build fails", func() {
			builder.errors["bad"] = zone.ErrInvalidCoordinate
			q.taskChan <- queue.Task{Index: 0, Partition: partition("bad", "p1")}
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then the error is reported in the result", func() {
				r := <-results
				convey.So(errors.Is(r.Err, zone.ErrInvalidCoordinate), convey.ShouldBeTrue)
				convey.So(r.Err.Error(), convey.ShouldContainSubstring, "game bad")
			})
		})

		convey.Convey("When shutting down an idle worker", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops without error", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		builder := newMockBuilder()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, builder)

			convey.Convey("Then it has at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When several partitions are processed", func() {
			pool := worker.NewPool(3, q, builder)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			pool.Start(ctx)

			games := []string{"g1", "g2", "g3", "g4", "g5"}
			go func() {
				for i, g := range games {
					_ = q.Enqueue(ctx, queue.Task{Index: i, Partition: partition(g, "p1")})
				}
				_ = q.Close()
			}()

			var indexes []int
			for r := range pool.Results() {
				convey.So(r.Err, convey.ShouldBeNil)
				indexes = append(indexes, r.Index)
			}
			sort.Ints(indexes)

			convey.Convey("Then every partition yields exactly one result", func() {
				convey.So(indexes, convey.ShouldResemble, []int{0, 1, 2, 3, 4})
				convey.So(builder.calls, convey.ShouldEqual, len(games))
			})
		})

		convey.Convey("When shutting down", func() {
			pool := worker.NewPool(2, q, builder)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then it closes the queue and returns cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(errors.Is(q.Enqueue(ctx, queue.Task{}), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a run is cancelled mid-batch and then torn down", func() {
			pool := worker.NewPool(2, q, builder)
			ctx, cancel := context.WithCancel(context.Background())
			pool.Start(ctx)

			convey.So(q.Enqueue(ctx, queue.Task{Index: 0, Partition: partition("g1", "p1")}), convey.ShouldBeNil)
			cancel()
			for range pool.Results() {
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer shutdownCancel()
			start := time.Now()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then shutdown returns at once and the queue rejects new work", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(time.Since(start), convey.ShouldBeLessThan, 500*time.Millisecond)
				convey.So(errors.Is(q.Enqueue(context.Background(), queue.Task{}), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerWithProfileBuilder(t *testing.T) {
	convey.Convey("Given the grid-backed profile builder", t, func() {
		_ = logging.Init()

		grid, err := zone.NewGrid(zone.WithShape(2, 2), zone.WithZoneMap([]string{"1", "2", "3", "4"}))
		convey.So(err, convey.ShouldBeNil)

		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(2, q, profile.Builder{Grid: grid})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Start(ctx)

		p := profile.Partition{GameID: "g1", Events: []model.RawActionEvent{
			{GameID: "g1", TeamID: "t1", PlayerID: "p1", EventName: "Tackle", X: 25, Y: 25},
			{GameID: "g1", TeamID: "t1", PlayerID: "p1", EventName: "Tackle", X: 75, Y: 75},
		}}
		convey.So(q.Enqueue(ctx, queue.Task{Index: 0, Partition: p}), convey.ShouldBeNil)
		_ = q.Close()

		r := <-pool.Results()

		convey.Convey("Then the partition is pivoted into zone counts", func() {
			convey.So(r.Err, convey.ShouldBeNil)
			convey.So(len(r.Profiles), convey.ShouldEqual, 1)
			convey.So(r.Profiles[0].Counts, convey.ShouldResemble, map[string]int{"Tackle_1": 1, "Tackle_4": 1})
		})
	})
}
