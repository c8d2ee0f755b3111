package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// Refresher collapses change notifications from the three live streams into
// debounced full-refresh cycles. Notifications arriving within the debounce
// window trigger a single refresh. Stop cancels any pending timer and
// detaches the subscription; no refresh fires after teardown.
type Refresher struct {
	feed     *ChangeFeed
	channels []string
	debounce time.Duration
	refresh  func(context.Context)
	logger   *logging.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
}

func NewRefresher(feed *ChangeFeed, channels []string, debounce time.Duration, refresh func(context.Context), logger *logging.Logger) *Refresher {
	if debounce <= 0 {
		debounce = 75 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Refresher{
		feed:     feed,
		channels: channels,
		debounce: debounce,
		refresh:  refresh,
		logger:   logger,
	}
}

// Start attaches the subscription and begins listening. Safe to call once.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.pubsub = r.feed.Subscribe(r.ctx, r.channels...)
	pubsub := r.pubsub
	listenCtx := r.ctx
	r.mu.Unlock()

	r.wg.Add(1)
	go r.listen(listenCtx, pubsub)
}

// Stop tears the refresher down: pending debounce cancelled, subscription
// closed, listener drained.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	cancel := r.cancel
	pubsub := r.pubsub
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pubsub != nil {
		_ = pubsub.Close()
	}
	r.wg.Wait()
}

// Bump schedules a refresh as if a change notification had arrived. Mutation
// paths use it to fold their own writes into the debounce window.
func (r *Refresher) Bump() {
	r.schedule()
}

func (r *Refresher) listen(ctx context.Context, pubsub *redis.PubSub) {
	defer r.wg.Done()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() == nil && !r.isStopped() {
					// Degraded but available: a broken stream still
					// triggers one refresh attempt.
					r.logger.Error("change feed stream closed unexpectedly")
					r.schedule()
				}
				return
			}
			r.schedule()
		}
	}
}

func (r *Refresher) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.fire)
}

func (r *Refresher) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	r.refresh(ctx)
}

func (r *Refresher) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
