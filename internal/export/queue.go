package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type (
	// Queue dispatches batches in the background so the webhook that closed
	// a batch can be acknowledged without waiting on the export
	Queue struct {
		prod        topic.Producer[*job]
		cons        topic.Consumer[*job]
		dispatch    DispatchFunc
		timeout     time.Duration
		stop        chan struct{}
		wg          sync.WaitGroup
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// DispatchFunc delivers a single batch
	DispatchFunc func(context.Context, *Batch) error

	// DoneFunc observes the outcome of a queued dispatch
	DoneFunc func(*Batch, error)

	job struct {
		batch *Batch
		done  DoneFunc
	}
)

var ErrDispatchPanicked = errors.New("export dispatch panicked")

// NewQueue creates a Queue that gives each dispatch up to timeout
func NewQueue(dispatch DispatchFunc, timeout time.Duration) *Queue {
	t := caravan.NewTopic[*job]()
	return &Queue{
		prod:     t.NewProducer(),
		cons:     t.NewConsumer(),
		dispatch: dispatch,
		timeout:  timeout,
		stop:     make(chan struct{}),
	}
}

// Start begins processing queued batches
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case j, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.handle(j)
				}
			}
		})
	})
}

// Enqueue schedules a batch for dispatch. done may be nil
func (q *Queue) Enqueue(b *Batch, done DoneFunc) {
	q.prod.Send() <- &job{
		batch: b,
		done:  done,
	}
}

// Flush dispatches anything still queued and stops the queue
func (q *Queue) Flush() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.drain)
}

func (q *Queue) drain() {
	defer q.close()
	for {
		select {
		case j, ok := <-q.cons.Receive():
			if !ok {
				return
			}
			q.handle(j)
		default:
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue) handle(j *job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := q.tryDispatch(ctx, j.batch)
	if err != nil {
		slog.Error("Queued export failed",
			log.BatchID(j.batch.ID),
			log.Error(err))
	}
	if j.done != nil {
		j.done(j.batch, err)
	}
}

func (q *Queue) tryDispatch(ctx context.Context, b *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDispatchPanicked, r)
		}
	}()
	return q.dispatch(ctx, b)
}
