package db

import (
	"context"
	"database/sql"
)

// TxFn runs inside a transaction owned by the Worker.
type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker serializes all writes through one goroutine so the single SQLite
// connection never sees interleaved transactions.
type Worker struct {
	conn *sql.DB
	jobs chan job
	done chan struct{}
}

func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		conn: conn,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close drains the queue and stops the loop.
func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

// Do enqueues fn and waits for its result. If the caller's context expires
// while the job is queued or executing, Do returns early; the worker still
// finishes the transaction and the result is discarded via the buffered
// channel.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)

	select {
	case w.jobs <- job{ctx: ctx, fn: fn, ch: ch}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		tx, err := w.conn.BeginTx(j.ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(j.ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
