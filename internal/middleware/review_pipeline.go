package middleware

import (
	"context"
	"sync"
	"time"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
)

// ReviewPipeline sits between the bid intake and the human-review queue.
// Flagged alerts are buffered so a slow or unavailable queue never stalls
// bid processing; a background flusher retries with exponential backoff
// and drops on overflow rather than blocking.
type ReviewPipeline struct {
	queue   domrepo.ReviewQueue
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan *models.FraudAlert
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*ReviewPipeline)

// WithBufferSize sets the alert buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *ReviewPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewReviewPipeline creates a new pipeline.
func NewReviewPipeline(queue domrepo.ReviewQueue, metrics domrepo.Metrics, opts ...PipelineOption) *ReviewPipeline {
	p := &ReviewPipeline{
		queue:   queue,
		metrics: metrics,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.FraudAlert, p.bufSize)
	return p
}

// Dispatch hands one flagged alert to the pipeline. Never blocks; a full
// buffer drops the alert and counts it.
func (p *ReviewPipeline) Dispatch(alert *models.FraudAlert) {
	if alert == nil {
		return
	}
	select {
	case p.bufCh <- alert:
	default:
		p.metrics.RecordError("review_buffer_drop")
	}
}

// Start launches background flushing of buffered alerts.
func (p *ReviewPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case alert := <-p.bufCh:
				if alert == nil {
					continue
				}
				if err := p.queue.EnqueueReview(ctx, alert); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("review_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- alert:
					default:
						p.metrics.RecordError("review_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts the flusher; buffered alerts are abandoned.
func (p *ReviewPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.started = false
}
