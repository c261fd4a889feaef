package client

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// WaitGroup allows executing requests concurrently using the Go method
// and wait until all requests are completed using the Wait method.
//
// The exchange starts immediately after calling the Go method.
// A failed exchange does not stop others, all requests are executed.
// Wait method at the end returns all responses in the order of the Go calls.
type WaitGroup struct {
	ctx    context.Context
	client Client
	wg     *sync.WaitGroup     // wait for all
	sem    *semaphore.Weighted // limit concurrency

	lock    *sync.Mutex // for results
	results []*Response
}

// NewWaitGroup creates new WaitGroup, the concurrency is limited by the Client batch limit.
func NewWaitGroup(ctx context.Context, c Client) *WaitGroup {
	limit := c.batchLimit
	if limit < 1 {
		limit = BatchConcurrencyLimit
	}
	return &WaitGroup{ctx: ctx, client: c, wg: &sync.WaitGroup{}, sem: semaphore.NewWeighted(limit), lock: &sync.Mutex{}}
}

// Go executes the request concurrently and returns index of its Response in the Wait result.
// The config must be valid, see request.Config.Validate.
func (g *WaitGroup) Go(cfg *request.Config) int {
	// Reserve the result slot
	g.lock.Lock()
	index := len(g.results)
	g.results = append(g.results, nil)
	g.lock.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		var res *Response
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			// Ctx is done, the request is not sent
			method := cfg.Method().Wire()
			res = newResponse(nil, Info{Method: method, URL: cfg.Target()}, cfg.AcceptFormat(), newTransportError(CodeAborted, method, cfg.Target(), fmt.Errorf("not sent: %w", err), err))
		} else {
			res = g.client.execute(g.ctx, cfg)
			g.sem.Release(1)
		}

		g.lock.Lock()
		defer g.lock.Unlock()
		g.results[index] = res
	}()
	return index
}

// Wait for all requests to complete and return the responses in the order of the Go calls.
func (g *WaitGroup) Wait() []*Response {
	g.wg.Wait()
	g.lock.Lock()
	defer g.lock.Unlock()
	out := make([]*Response, len(g.results))
	copy(out, g.results)
	return out
}
