package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultKeyIdleTimeout = 5 * time.Minute

var ErrCoordinatorClosed = errors.New("coordinator closed")

// BatchResult is the outcome of one claim of an EnqueueBatch call.
type BatchResult struct {
	Fact *domain.FusedFact
	Err  error
}

type submission struct {
	ctx   context.Context
	claim domain.Claim
	done  chan BatchResult
}

// keyWorker owns the FactState of one key. pending is guarded by the
// coordinator mutex; state is touched only by the worker goroutine.
type keyWorker struct {
	key     domain.FactKey
	pending []*submission
	wake    chan struct{}
	state   *FactState
}

// Coordinator serializes fusion per fact key. Each key gets its own worker
// goroutine on first use, so independent keys fuse in parallel while claims
// of one key are processed strictly in submission order.
type Coordinator struct {
	claims   domain.ClaimStore
	facts    domain.FactStore
	engine   *FusionEngine
	versions *VersioningService
	logger   *zap.Logger
	metrics  *metrics.Metrics

	idleTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	workers map[domain.FactKey]*keyWorker
	closed  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewCoordinator(
	cs domain.ClaimStore,
	fs domain.FactStore,
	engine *FusionEngine,
	versions *VersioningService,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		claims:      cs,
		facts:       fs,
		engine:      engine,
		versions:    versions,
		logger:      logger,
		idleTimeout: defaultKeyIdleTimeout,
		now:         time.Now,
		workers:     make(map[domain.FactKey]*keyWorker),
		stopCh:      make(chan struct{}),
	}
}

func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Coordinator) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		c.idleTimeout = d
	}
}

// Enqueue submits a validated claim and waits for the resulting FusedFact.
// If ctx is cancelled before the claim's turn comes, the claim is dropped and
// nothing is recorded. Once processing has started it runs to completion.
func (c *Coordinator) Enqueue(ctx context.Context, claim domain.Claim) (*domain.FusedFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &submission{ctx: ctx, claim: claim, done: make(chan BatchResult, 1)}
	if err := c.submit(sub); err != nil {
		return nil, err
	}

	select {
	case res := <-sub.done:
		return res.Fact, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnqueueBatch submits claims grouped by key. Claims of one key keep their
// relative order; different keys are fused concurrently. Results are indexed
// like the input.
func (c *Coordinator) EnqueueBatch(ctx context.Context, claims []domain.Claim) ([]BatchResult, error) {
	results := make([]BatchResult, len(claims))

	var order []domain.FactKey
	groups := make(map[domain.FactKey][]int)
	for i := range claims {
		k := claims[i].FactKey
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range order {
		idxs := groups[k]
		g.Go(func() error {
			for _, i := range idxs {
				fact, err := c.Enqueue(gctx, claims[i])
				results[i] = BatchResult{Fact: fact, Err: err}
				if errors.Is(err, ErrCoordinatorClosed) {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Current returns the latest FusedFact for key.
func (c *Coordinator) Current(ctx context.Context, key domain.FactKey) (*domain.FusedFact, error) {
	return c.facts.Get(ctx, key)
}

func (c *Coordinator) ListFacts(ctx context.Context, opts domain.ListFactsOpts) ([]domain.FusedFact, error) {
	return c.facts.List(ctx, opts)
}

// Claims returns the scored claims for key in canonical order. Quarantined
// claims are left out unless showAll is set.
func (c *Coordinator) Claims(ctx context.Context, key domain.FactKey, showAll bool) ([]domain.ScoredClaim, error) {
	claims, err := c.claims.ListByFactKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	scored, err := ScoreClaims(claims, c.engine.Policy())
	if err != nil {
		return nil, err
	}
	out := scored[:0]
	for _, sc := range scored {
		if domain.Visible(sc.Zone, showAll) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Close stops accepting claims, lets every worker drain its queue and waits
// for them to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("fusion coordinator stopped")
}

func (c *Coordinator) submit(sub *submission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCoordinatorClosed
	}

	key := sub.claim.FactKey
	w, ok := c.workers[key]
	if !ok {
		w = &keyWorker{key: key, wake: make(chan struct{}, 1)}
		c.workers[key] = w
		c.wg.Add(1)
		c.metrics.WorkerStarted()
		go c.run(w)
	}
	w.pending = append(w.pending, sub)
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Coordinator) run(w *keyWorker) {
	defer c.wg.Done()
	defer c.metrics.WorkerStopped()

	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()

	for {
		for sub := c.next(w); sub != nil; sub = c.next(w) {
			sub.done <- c.process(w, sub)
		}
		idle.Reset(c.idleTimeout)

		select {
		case <-w.wake:
		case <-c.stopCh:
			if c.release(w) {
				return
			}
		case <-idle.C:
			if c.release(w) {
				c.logger.Debug("key worker released", zap.String("fact_key", w.key.String()))
				return
			}
		}
	}
}

func (c *Coordinator) next(w *keyWorker) *submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	sub := w.pending[0]
	w.pending[0] = nil
	w.pending = w.pending[1:]
	return sub
}

// release removes w from the worker map if nothing is queued for it. A
// submission that raced in keeps the worker alive.
func (c *Coordinator) release(w *keyWorker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(w.pending) > 0 {
		return false
	}
	delete(c.workers, w.key)
	return true
}

func (c *Coordinator) process(w *keyWorker, sub *submission) BatchResult {
	if err := sub.ctx.Err(); err != nil {
		c.logger.Debug("dropped cancelled claim",
			zap.String("claim_id", sub.claim.ID.String()),
			zap.String("fact_key", w.key.String()))
		return BatchResult{Err: err}
	}
	ctx := context.WithoutCancel(sub.ctx)
	start := time.Now()

	if err := c.claims.Append(ctx, &sub.claim); err != nil {
		return BatchResult{Err: fmt.Errorf("append claim: %w", err)}
	}

	fact, err := c.fuse(ctx, w, sub.claim)
	if err != nil {
		// The claim is recorded; the next claim for this key rebuilds from
		// the store.
		w.state = nil
		c.logger.Error("fusion failed",
			zap.String("fact_key", w.key.String()),
			zap.String("claim_id", sub.claim.ID.String()),
			zap.Error(err))
		return BatchResult{Err: err}
	}

	c.metrics.ObserveFusionLatency(time.Since(start))
	if fact.NarrativeWar {
		c.metrics.IncrementNarrativeWars()
	}
	return BatchResult{Fact: fact.Clone()}
}

func (c *Coordinator) fuse(ctx context.Context, w *keyWorker, claim domain.Claim) (*domain.FusedFact, error) {
	if w.state == nil {
		claims, err := c.claims.ListByFactKey(ctx, w.key)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		state, err := c.engine.Rebuild(w.key, claims)
		if err != nil {
			return nil, err
		}
		w.state = state
	} else if err := c.engine.Apply(w.state, claim); err != nil {
		return nil, err
	}

	fact := c.engine.Snapshot(w.state, c.now())
	if _, _, err := c.versions.AppendVersion(ctx, fact); err != nil {
		return nil, err
	}
	if err := c.facts.Put(ctx, fact); err != nil {
		return nil, fmt.Errorf("store fused fact: %w", err)
	}
	return fact, nil
}
