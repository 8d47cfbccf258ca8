package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
)

var ErrPoolStopped = errors.New("http: worker pool stopped")

// ConnFunc processes one connection end to end. The writer belongs to the
// worker and is reset onto conn before the call.
type ConnFunc func(conn net.Conn, bw *bufio.Writer)

// WorkerPool runs a fixed number of long-lived workers consuming accepted
// connections from a bounded queue. Submit blocks while the queue is full.
type WorkerPool struct {
	Size int

	queue chan net.Conn
	serve ConnFunc
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewWorkerPool(size, queueSize int, serve ConnFunc) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerPoolSize
	}
	if queueSize < 0 {
		queueSize = 0
	}

	return &WorkerPool{
		Size:  size,
		queue: make(chan net.Conn, queueSize),
		serve: serve,
	}
}

func (wp *WorkerPool) Start() {
	wp.wg.Add(wp.Size)
	for range wp.Size {
		go wp.work()
	}
}

func (wp *WorkerPool) work() {
	defer wp.wg.Done()

	bw := bufio.NewWriterSize(nil, DefaultWriteBufferSize)
	for conn := range wp.queue {
		bw.Reset(conn)
		wp.serve(conn, bw)
	}
}

// Submit hands conn to the next free worker. The caller keeps ownership of
// conn when ErrPoolStopped is returned.
func (wp *WorkerPool) Submit(conn net.Conn) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}
	wp.queue <- conn
	return nil
}

// Stop closes the queue and waits until every queued and in-flight
// connection is finished or ctx is done.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.queue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
