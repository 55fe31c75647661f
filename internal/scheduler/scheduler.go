// Package scheduler implements the Scheduler (spec.md §4.9): eight
// independent periodic loops that drive incremental/full reconciliation
// between Commerce, the canonical store, and FFN.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/lifecycle"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

const (
	defaultMaxConcurrentSyncs = 3
	interBatchDelay           = 2 * time.Second
)

// Periods match spec.md §4.9's defaults.
const (
	incrementalSyncPeriod   = 5 * time.Minute
	fullSyncPeriod          = 24 * time.Hour
	ffnUpdatesPollPeriod    = 2 * time.Minute
	tokenRefreshPeriod      = 12 * time.Hour
	stockSyncPeriod         = 15 * time.Minute
	inboundPollPeriod       = 2 * time.Minute
	commerceReconcilePeriod = 30 * time.Minute
	paidOrderSweepPeriod    = 10 * time.Minute

	// stuckFulfillmentStaleAfter bounds how long an outbound-carrying order
	// may go without an FFN sync before runCommerceReconcile re-fetches it
	// directly, rather than waiting on the next ffn-updates-poll cursor page.
	stuckFulfillmentStaleAfter = 2 * time.Hour
	stuckFulfillmentBatchLimit = 20
)

// Scheduler owns the eight periodic loops described in spec.md §4.9. A
// single process runs one Scheduler.
type Scheduler struct {
	ffnClient          *ffn.Client
	engine             *lifecycle.Engine
	commerceResolver   lifecycle.CommerceResolver
	enqueuer           queue.Enqueuer
	logger             *zap.Logger
	maxConcurrentSyncs int
	channelState       *memdb.MemDB

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. maxConcurrentSyncs <= 0 falls back to the
// spec's default of 3.
func New(ffnClient *ffn.Client, engine *lifecycle.Engine, resolver lifecycle.CommerceResolver, enqueuer queue.Enqueuer, logger *zap.Logger, maxConcurrentSyncs int) (*Scheduler, error) {
	if maxConcurrentSyncs <= 0 {
		maxConcurrentSyncs = defaultMaxConcurrentSyncs
	}
	state, err := newChannelStateDB()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		ffnClient:          ffnClient,
		engine:             engine,
		commerceResolver:   resolver,
		enqueuer:           enqueuer,
		logger:             logger,
		maxConcurrentSyncs: maxConcurrentSyncs,
		channelState:       state,
	}, nil
}

// Start launches all eight loops as independent goroutines. Start returns
// immediately; call Stop to drain.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	loops := []struct {
		name   string
		period time.Duration
		run    func(context.Context)
	}{
		{"incremental-sync", incrementalSyncPeriod, s.runIncrementalSync},
		{"full-sync", fullSyncPeriod, s.runFullSync},
		{"ffn-updates-poll", ffnUpdatesPollPeriod, s.runFFNUpdatesPoll},
		{"token-refresh", tokenRefreshPeriod, s.runTokenRefresh},
		{"stock-sync", stockSyncPeriod, s.runStockSync},
		{"inbound-poll", inboundPollPeriod, s.runInboundPoll},
		{"commerce-reconcile", commerceReconcilePeriod, s.runCommerceReconcile},
		{"paid-order-sweep", paidOrderSweepPeriod, s.runPaidOrderSweep},
	}

	for _, l := range loops {
		s.wg.Add(1)
		go s.runLoop(ctx, l.name, l.period, l.run)
	}
}

// Stop cancels all loop timers. In-flight batches are allowed to drain;
// Stop blocks until every loop goroutine has returned.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, name string, period time.Duration, run func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			run(ctx)
			s.logger.Info("scheduler: loop tick complete", zap.String("loop", name), zap.Duration("duration", time.Since(start)))
		}
	}
}

// forEachTenant runs fn for every active tenant, bounded to
// maxConcurrentSyncs in flight at once with an inter-batch delay between
// waves, aggregating per-tenant errors without aborting the sweep.
func (s *Scheduler) forEachTenant(ctx context.Context, jobName string, fn func(ctx context.Context, tenantID string) error) {
	tenants, err := postgres.ListActiveTenants()
	if err != nil {
		s.logger.Error("scheduler: failed to list active tenants", zap.String("job", jobName), zap.Error(err))
		return
	}

	sem := make(chan struct{}, s.maxConcurrentSyncs)
	var wg sync.WaitGroup
	var merr *multierror.Error
	var mu sync.Mutex

	for i, t := range tenants {
		sem <- struct{}{}
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			defer func() { <-sem }()
			start := time.Now()
			err := fn(ctx, tenantID)
			recordCronRun(tenantID, jobName, start, "", err)
			if err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
			}
		}(t.ID)

		if (i+1)%s.maxConcurrentSyncs == 0 {
			wg.Wait()
			select {
			case <-ctx.Done():
				return
			case <-time.After(interBatchDelay):
			}
		}
	}
	wg.Wait()

	if merr.ErrorOrNil() != nil {
		s.logger.Warn("scheduler: job completed with per-tenant errors", zap.String("job", jobName), zap.Error(merr))
	}
}

func (s *Scheduler) resolveCommerceClients(tenantID string) ([]channelClient, error) {
	channels, err := s.refreshChannelState(tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]channelClient, 0, len(channels))
	for _, ch := range channels {
		if !ch.SyncEnabled {
			continue
		}
		client, err := s.commerceResolver.Resolve(ch)
		if err != nil {
			s.logger.Warn("scheduler: failed to resolve commerce client", zap.String("channelId", ch.ID), zap.Error(err))
			continue
		}
		out = append(out, channelClient{channel: ch, client: client})
	}
	return out, nil
}

type channelClient struct {
	channel domain.Channel
	client  commerce.CommerceClient
}

func (s *Scheduler) syncChannel(ctx context.Context, cc channelClient, useCursor bool) error {
	orderCursor := ""
	productCursor := ""
	if useCursor {
		orderCursor = loadCursor(cc.channel.TenantID, "orders-"+cc.channel.ID)
		productCursor = loadCursor(cc.channel.TenantID, "products-"+cc.channel.ID)
	}

	orders, nextOrderCursor, err := cc.client.ListOrdersSince(ctx, orderCursor)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.ChannelID = cc.channel.ID
		o.TenantID = cc.channel.TenantID
		id, err := postgres.UpsertOrder(o)
		if err != nil {
			s.logger.Error("scheduler: failed to upsert order", zap.String("channelId", cc.channel.ID), zap.Error(err))
			continue
		}
		if _, err := s.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToFFN, map[string]any{
			"tenantId": cc.channel.TenantID,
			"orderId":  id,
		}, queue.EnqueueOptions{SingletonKey: "ffn-sync-" + id}); err != nil {
			s.logger.Error("scheduler: failed to enqueue ffn sync", zap.String("orderId", id), zap.Error(err))
		}
	}
	if useCursor && nextOrderCursor != "" {
		recordCronRun(cc.channel.TenantID, "orders-"+cc.channel.ID, time.Now(), nextOrderCursor, nil)
	}

	products, nextProductCursor, err := cc.client.ListProductsSince(ctx, productCursor)
	if err != nil {
		return err
	}
	for _, p := range products {
		p.TenantID = cc.channel.TenantID
		if _, err := postgres.UpsertProduct(p); err != nil {
			s.logger.Error("scheduler: failed to upsert product", zap.String("channelId", cc.channel.ID), zap.Error(err))
		}
	}
	if useCursor && nextProductCursor != "" {
		recordCronRun(cc.channel.TenantID, "products-"+cc.channel.ID, time.Now(), nextProductCursor, nil)
	}

	if err := postgres.UpdateChannelLastOrderPoll(cc.channel.ID, time.Now()); err != nil {
		s.logger.Warn("scheduler: failed to record channel poll time", zap.String("channelId", cc.channel.ID), zap.Error(err))
	}
	return nil
}

// runIncrementalSync is the 5-minute loop: listOrdersSince/listProductsSince
// per active channel with the persisted cursor. Only Storefront's order
// listing applies an overlap window; product listings and Webshop resume
// exactly at the cursor (spec.md §4.9).
func (s *Scheduler) runIncrementalSync(ctx context.Context) {
	s.forEachTenant(ctx, "incremental-sync", func(ctx context.Context, tenantID string) error {
		clients, err := s.resolveCommerceClients(tenantID)
		if err != nil {
			return err
		}
		var merr *multierror.Error
		for _, cc := range clients {
			if err := s.syncChannel(ctx, cc, true); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	})
}

// runFullSync is the 24-hour loop: same as incremental but ignoring the
// persisted cursor, to rebuild drift (spec.md §4.9).
func (s *Scheduler) runFullSync(ctx context.Context) {
	s.forEachTenant(ctx, "full-sync", func(ctx context.Context, tenantID string) error {
		clients, err := s.resolveCommerceClients(tenantID)
		if err != nil {
			return err
		}
		var merr *multierror.Error
		for _, cc := range clients {
			if err := s.syncChannel(ctx, cc, false); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	})
}

// runFFNUpdatesPoll is the 2-minute loop draining getOutboundUpdates and
// getReturnUpdates (spec.md §4.9).
func (s *Scheduler) runFFNUpdatesPoll(ctx context.Context) {
	s.forEachTenant(ctx, "ffn-updates-poll", func(ctx context.Context, tenantID string) error {
		cfg, err := postgres.GetFFNConfig(tenantID)
		if err != nil || !cfg.IsActive {
			return nil
		}

		outboundCursor := loadCursor(tenantID, "ffn-updates-poll-outbound")
		nextOutboundCursor, err := s.engine.ApplyFFNUpdates(ctx, tenantID, outboundCursor)
		if err != nil {
			return err
		}
		if nextOutboundCursor != "" {
			recordCronRun(tenantID, "ffn-updates-poll-outbound", time.Now(), nextOutboundCursor, nil)
		}

		returnCursor := loadCursor(tenantID, "ffn-updates-poll-return")
		returns, nextReturnCursor, err := s.ffnClient.GetReturnUpdates(ctx, tenantID, returnCursor)
		if err != nil {
			return err
		}
		for _, r := range returns {
			canonical, err := postgres.GetReturnByFFNReturnID(tenantID, r.ID)
			if err != nil {
				s.logger.Warn("scheduler: failed to resolve return for ffn update", zap.String("ffnReturnId", r.ID), zap.Error(err))
				continue
			}
			if canonical.ID == "" {
				s.logger.Debug("scheduler: no canonical return for ffn update yet", zap.String("ffnReturnId", r.ID))
				continue
			}
			if err := postgres.UpdateReturnStatus(canonical.ID, domain.ReturnStatus(r.Status)); err != nil {
				s.logger.Error("scheduler: failed to update return status", zap.String("returnId", canonical.ID), zap.Error(err))
				continue
			}
			if _, err := s.enqueuer.Enqueue(ctx, queue.QueueReturnSyncToCommerce, map[string]any{
				"tenantId": tenantID,
				"returnId": canonical.ID,
			}, queue.EnqueueOptions{SingletonKey: "commerce-return-" + canonical.ID + "-" + r.Status}); err != nil {
				s.logger.Error("scheduler: failed to enqueue return commerce sync", zap.String("returnId", canonical.ID), zap.Error(err))
			}
		}
		if nextReturnCursor != "" {
			recordCronRun(tenantID, "ffn-updates-poll-return", time.Now(), nextReturnCursor, nil)
		}
		return nil
	})
}

// runTokenRefresh is the 12-hour proactive refresh loop (spec.md §4.9).
func (s *Scheduler) runTokenRefresh(ctx context.Context) {
	cfgs, err := postgres.ListActiveFFNConfigs()
	if err != nil {
		s.logger.Error("scheduler: failed to list active ffn configs", zap.Error(err))
		return
	}
	for _, cfg := range cfgs {
		start := time.Now()
		err := s.ffnClient.RefreshTokenProactively(ctx, cfg.TenantID)
		if revoked, ok := err.(*errs.TokenRevoked); ok {
			if err := postgres.SetFFNConfigInactive(cfg.TenantID); err != nil {
				s.logger.Error("scheduler: failed to deactivate revoked ffn config", zap.String("tenantId", cfg.TenantID), zap.Error(err))
			}
			s.logger.Warn("scheduler: ffn token revoked, config deactivated", zap.String("tenantId", cfg.TenantID), zap.String("detail", revoked.Detail))
			err = nil
		}
		recordCronRun(cfg.TenantID, "token-refresh", start, "", err)
	}
}

// runStockSync is the 15-minute safety-net loop reconciling FFN stock
// into canonical products (spec.md §4.9).
func (s *Scheduler) runStockSync(ctx context.Context) {
	s.forEachTenant(ctx, "stock-sync", func(ctx context.Context, tenantID string) error {
		return s.syncStockForTenant(ctx, tenantID)
	})
}

func (s *Scheduler) syncStockForTenant(ctx context.Context, tenantID string) error {
	cfg, err := postgres.GetFFNConfig(tenantID)
	if err != nil || !cfg.IsActive {
		return nil
	}
	products, err := s.ffnClient.GetAllProductsWithStock(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, p := range products {
		local, err := postgres.GetProductBySKU(tenantID, p.SKU)
		if err != nil {
			continue
		}
		if err := postgres.UpdateProductStock(local.ID, p.AvailableStock, p.ReservedStock); err != nil {
			s.logger.Error("scheduler: failed to update product stock", zap.String("sku", p.SKU), zap.Error(err))
		}
	}
	return nil
}

// runInboundPoll is the 2-minute loop detecting closed inbounds and
// triggering an immediate stock sync for the affected tenant (spec.md
// §4.9).
func (s *Scheduler) runInboundPoll(ctx context.Context) {
	s.forEachTenant(ctx, "inbound-poll", func(ctx context.Context, tenantID string) error {
		cfg, err := postgres.GetFFNConfig(tenantID)
		if err != nil || !cfg.IsActive {
			return nil
		}
		cursor := loadCursor(tenantID, "inbound-poll-cursor")
		inbounds, nextCursor, err := s.ffnClient.GetInboundUpdates(ctx, tenantID, cursor)
		if err != nil {
			return err
		}
		closedAny := false
		for _, ib := range inbounds {
			if ib.Status == "CLOSED" || ib.Status == "COMPLETED" {
				closedAny = true
			}
		}
		if nextCursor != "" {
			recordCronRun(tenantID, "inbound-poll-cursor", time.Now(), nextCursor, nil)
		}
		if closedAny {
			return s.syncStockForTenant(ctx, tenantID)
		}
		return nil
	})
}

// runCommerceReconcile is the 30-minute loop re-enqueuing commerce-fulfill
// jobs for orders stuck with a commerce sync error, batch <= 20, oldest
// first, and separately re-fetching orders whose fulfillment state has gone
// stale against FFN (spec.md §4.9's "stuck-fulfillment reconcile per
// tenant" — distinct from the commerce-sync-error re-enqueue above).
func (s *Scheduler) runCommerceReconcile(ctx context.Context) {
	s.forEachTenant(ctx, "commerce-reconcile", func(ctx context.Context, tenantID string) error {
		stuck, err := postgres.ListStuckCommerceSyncOrders(tenantID, 20)
		if err != nil {
			return err
		}
		for _, o := range stuck {
			if _, err := s.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToCommerce, map[string]any{
				"tenantId": tenantID,
				"orderId":  o.ID,
				"action":   "fulfill",
			}, queue.EnqueueOptions{SingletonKey: "commerce-fulfill-" + o.ID}); err != nil {
				s.logger.Error("scheduler: failed to re-enqueue commerce fulfill", zap.String("orderId", o.ID), zap.Error(err))
			}
		}
		return s.reconcileStuckFulfillments(ctx, tenantID)
	})
}

// reconcileStuckFulfillments re-fetches, outbound by outbound, any order
// whose fulfillmentState hasn't advanced in stuckFulfillmentStaleAfter
// despite carrying an ffnOutboundId — the ffn-updates-poll cursor can drop
// a page or regress, otherwise leaving such an order stuck indefinitely.
func (s *Scheduler) reconcileStuckFulfillments(ctx context.Context, tenantID string) error {
	stuck, err := postgres.ListStuckFulfillmentOrders(tenantID, stuckFulfillmentStaleAfter, stuckFulfillmentBatchLimit)
	if err != nil {
		return err
	}
	for _, o := range stuck {
		if o.FFNOutboundID == nil || *o.FFNOutboundID == "" {
			continue
		}
		if err := s.engine.ReconcileStuckOutbound(ctx, tenantID, *o.FFNOutboundID); err != nil {
			s.logger.Error("scheduler: failed to reconcile stuck fulfillment", zap.String("orderId", o.ID), zap.String("outboundId", *o.FFNOutboundID), zap.Error(err))
		}
	}
	return nil
}

// runPaidOrderSweep is the 10-minute safety net finding up to 50 paid
// orders never dispatched to FFN (spec.md §4.9).
func (s *Scheduler) runPaidOrderSweep(ctx context.Context) {
	s.forEachTenant(ctx, "paid-order-sweep", func(ctx context.Context, tenantID string) error {
		candidates, err := postgres.ListPaidOrdersAwaitingFFNDispatch(tenantID, 50)
		if err != nil {
			return err
		}
		for _, o := range candidates {
			if _, err := s.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToFFN, map[string]any{
				"tenantId": tenantID,
				"orderId":  o.ID,
			}, queue.EnqueueOptions{
				SingletonKey:    "ffn-sync-" + o.ID,
				Priority:        -1,
				RetryLimit:      3,
				RetryDelay:      60 * time.Second,
				ExpireInSeconds: 3600,
			}); err != nil {
				s.logger.Error("scheduler: failed to enqueue paid-order sweep sync", zap.String("orderId", o.ID), zap.Error(err))
			}
		}
		return nil
	})
}
