package ingest

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction handles one unit of work. For the ingest server a task
// is a live connection, and the function handles one read from it
// before re-queueing the connection as a new task.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of workers pulling from a shared task
// channel. Adapted from the teacher's root-package WorkerPool
// (internal/worker.go): same tomb-supervised replenishment loop, moved
// into the ingest package and renamed to fit a single server's
// connection-handling pool rather than a generic task runner.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// NewWorkerPool constructs a pool sized to run up to size workers
// concurrently.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a unit of work (typically a net.Conn) for the next
// free worker.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup keeps the pool topped up to n active workers until t dies.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("ingest worker pool starting")

	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					err := p.worker(t)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := p.work(t, task); err != nil {
			log.Error().Err(err).Msg("ingest worker exiting on error")
			return err
		}
	}
	return nil
}
