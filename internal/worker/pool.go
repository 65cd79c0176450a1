package worker

import (
	"sync"

	"github.com/smehubhq/payments-service/internal/metrics"
)

type job func()

// Pool runs best-effort side work (audit writes, event publishes) off the
// request path. The queue is bounded; Submit blocks when it is full rather
// than dropping work.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan job
}

func NewPool(n int) *Pool {
	p := &Pool{jobs: make(chan job, 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				j()
				metrics.WorkerQueueDepth.Dec()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f job) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() { close(p.jobs); p.wg.Wait() }
