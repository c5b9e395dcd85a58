// Package ingest owns the subscription lifecycle: one filtered log
// subscription per contract event kind, each drained by its own supervised
// loop, all writing through the persistence layer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/recyclechain/indexer/internal/contract"
	"github.com/recyclechain/indexer/internal/domain"
	"github.com/recyclechain/indexer/internal/storage"
)

const (
	// Bounded wait for a toxic item's product row to appear. Toxic-item
	// events can be delivered before the product-creation event commits.
	parentWaitAttempts = 5
	parentWaitInterval = time.Second

	logBufferSize = 64
)

// LogSubscriber opens filtered log subscriptions. Satisfied by chain.Client.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Decoder maps event kinds to log filters and raw logs to typed events.
// Satisfied by contract.Binding.
type Decoder interface {
	FilterQuery(kind contract.Kind) ethereum.FilterQuery
	DecodeEvent(lg types.Log) (contract.Event, error)
}

// TimestampResolver resolves a block number to its wall-clock time.
// Satisfied by chain.BlockTimestamps.
type TimestampResolver interface {
	BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Writer performs the per-event persistent writes. Satisfied by
// storage.Store.
type Writer interface {
	CreateManufacturer(ctx context.Context, m domain.Manufacturer) error
	CreateProduct(ctx context.Context, p domain.Product) error
	CreateProductItems(ctx context.Context, productID string, itemIDs []string, ts time.Time) error
	UpdateItemsStatus(ctx context.Context, itemIDs []string, status domain.ProductStatus, ts time.Time) (int64, error)
	ProductExists(ctx context.Context, id string) (bool, error)
	CreateToxicItem(ctx context.Context, t domain.ToxicItem) error
}

// Manager registers one subscription per event kind and supervises the
// handler loops. Handler failures are logged and isolated; they never tear
// down the subscription or affect other kinds.
type Manager struct {
	subscriber LogSubscriber
	decoder    Decoder
	resolver   TimestampResolver
	writer     Writer
	logger     *slog.Logger

	waitAttempts int
	waitInterval time.Duration

	mu      sync.Mutex
	subs    []ethereum.Subscription
	started bool

	wg      sync.WaitGroup
	handled map[contract.Kind]*atomic.Uint64
}

func NewManager(subscriber LogSubscriber, decoder Decoder, resolver TimestampResolver, writer Writer, logger *slog.Logger) *Manager {
	handled := make(map[contract.Kind]*atomic.Uint64, len(contract.Kinds()))
	for _, kind := range contract.Kinds() {
		handled[kind] = new(atomic.Uint64)
	}
	return &Manager{
		subscriber:   subscriber,
		decoder:      decoder,
		resolver:     resolver,
		writer:       writer,
		logger:       logger.With("component", "ingest-manager"),
		waitAttempts: parentWaitAttempts,
		waitInterval: parentWaitInterval,
		handled:      handled,
	}
}

// Start registers one filtered log subscription per event kind. A kind
// whose registration fails is logged and skipped; the remaining kinds still
// register. Start fails only when no kind could be registered.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("manager already started")
	}

	for _, kind := range contract.Kinds() {
		logCh := make(chan types.Log, logBufferSize)
		sub, err := m.subscriber.SubscribeFilterLogs(ctx, m.decoder.FilterQuery(kind), logCh)
		if err != nil {
			m.logger.Error("listener setup failed", "event", kind, "error", err)
			continue
		}

		m.subs = append(m.subs, sub)
		m.wg.Add(1)
		go m.run(ctx, kind, sub, logCh)

		m.logger.Info("listening", "event", kind)
	}

	if len(m.subs) == 0 {
		return errors.New("no event subscriptions registered")
	}

	m.started = true
	return nil
}

// Stop removes all registered subscriptions and waits for in-flight
// handlers to finish. Safe to call while handlers are running and safe to
// call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	m.wg.Wait()

	for _, kind := range contract.Kinds() {
		if n := m.handled[kind].Load(); n > 0 {
			m.logger.Info("events handled", "event", kind, "count", n)
		}
	}
}

// run drains one event kind's log channel until the subscription ends.
func (m *Manager) run(ctx context.Context, kind contract.Kind, sub ethereum.Subscription, logCh <-chan types.Log) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-sub.Err():
			if !ok {
				// Unsubscribed.
				return
			}
			if err != nil {
				// Transport failure. The process supervisor owns
				// reconnection; other kinds keep running.
				m.logger.Error("subscription error", "event", kind, "error", err)
			}
			return

		case lg := <-logCh:
			m.dispatch(ctx, kind, lg)
		}
	}
}

// dispatch handles one log delivery. Every outcome is a log line; errors
// never propagate out of the loop.
func (m *Manager) dispatch(ctx context.Context, kind contract.Kind, lg types.Log) {
	err := m.handle(ctx, lg)
	switch {
	case err == nil:
		m.handled[kind].Add(1)
	case errors.Is(err, storage.ErrDuplicateKey):
		m.logger.Warn("duplicate event ignored",
			"event", kind, "block", lg.BlockNumber, "tx", lg.TxHash.Hex())
	case errors.Is(err, storage.ErrForeignKeyViolation):
		m.logger.Error("parent row missing, event not applied",
			"event", kind, "block", lg.BlockNumber, "tx", lg.TxHash.Hex(), "error", err)
	default:
		m.logger.Error("event handling failed",
			"event", kind, "block", lg.BlockNumber, "tx", lg.TxHash.Hex(), "error", err)
	}
}

func (m *Manager) handle(ctx context.Context, lg types.Log) error {
	evt, err := m.decoder.DecodeEvent(lg)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	ts, err := m.resolver.BlockTime(ctx, lg.BlockNumber)
	if err != nil {
		return fmt.Errorf("resolve block time: %w", err)
	}

	switch e := evt.(type) {
	case contract.ManufacturerRegistered:
		return m.writer.CreateManufacturer(ctx, domain.Manufacturer{
			ID:        e.ManufacturerID,
			Name:      e.Name,
			Location:  e.Location,
			Contact:   e.Contact,
			Timestamp: ts,
		})

	case contract.ProductCreated:
		return m.writer.CreateProduct(ctx, domain.Product{
			ID:             e.ProductID,
			Name:           e.Name,
			Timestamp:      ts,
			ManufacturerID: e.ManufacturerID,
		})

	case contract.ProductItemsAdded:
		return m.writer.CreateProductItems(ctx, e.ProductID, e.ItemIDs, ts)

	case contract.ItemsStatusChanged:
		status, err := domain.StatusFromCode(e.StatusCode)
		if err != nil {
			return err
		}
		updated, err := m.writer.UpdateItemsStatus(ctx, e.ItemIDs, status, ts)
		if err != nil {
			return err
		}
		m.logger.Debug("items status updated",
			"status", status, "ids", e.ItemIDs, "rows", updated)
		return nil

	case contract.ToxicItemCreated:
		return m.recordToxicItem(ctx, e, ts)
	}

	return fmt.Errorf("unhandled event type %T", evt)
}

// recordToxicItem waits for the referenced product row before inserting.
// Toxic-item and product-creation events arrive on independently ordered
// streams, so the parent may commit shortly after. After the attempts are
// exhausted the item is recorded as not created; that is a warning, not a
// handler failure.
func (m *Manager) recordToxicItem(ctx context.Context, e contract.ToxicItemCreated, ts time.Time) error {
	for attempt := 1; attempt <= m.waitAttempts; attempt++ {
		exists, err := m.writer.ProductExists(ctx, e.ProductID)
		if err != nil {
			return fmt.Errorf("look up product %s: %w", e.ProductID, err)
		}
		if exists {
			return m.writer.CreateToxicItem(ctx, domain.ToxicItem{
				Name:      e.Name,
				Weight:    e.Weight,
				Timestamp: ts,
				ProductID: e.ProductID,
			})
		}

		m.logger.Warn("product not found for toxic item, waiting",
			"product_id", e.ProductID, "attempt", attempt, "max_attempts", m.waitAttempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.waitInterval):
		}
	}

	m.logger.Warn("toxic item not created, product never appeared",
		"product_id", e.ProductID, "name", e.Name)
	return nil
}
