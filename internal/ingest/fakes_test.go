package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/recyclechain/indexer/internal/contract"
	"github.com/recyclechain/indexer/internal/domain"
	"github.com/recyclechain/indexer/internal/storage"
)

// fakeSubscription mimics an ethereum.Subscription whose error channel is
// closed on Unsubscribe.
type fakeSubscription struct {
	errCh chan error
	once  sync.Once

	mu           sync.Mutex
	unsubscribed bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{errCh: make(chan error, 1)}
}

func (s *fakeSubscription) Unsubscribe() {
	s.mu.Lock()
	s.unsubscribed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.errCh) })
}

func (s *fakeSubscription) Err() <-chan error { return s.errCh }

func (s *fakeSubscription) isUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// fakeSubscriber hands out one log channel per event kind and can be told
// to fail registration for specific kinds.
type fakeSubscriber struct {
	mu       sync.Mutex
	failFor  map[contract.Kind]bool
	channels map[contract.Kind]chan<- types.Log
	subs     map[contract.Kind]*fakeSubscription
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		failFor:  make(map[contract.Kind]bool),
		channels: make(map[contract.Kind]chan<- types.Log),
		subs:     make(map[contract.Kind]*fakeSubscription),
	}
}

func (f *fakeSubscriber) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := kindForTopic(q.Topics[0][0])
	if f.failFor[kind] {
		return nil, fmt.Errorf("malformed filter for %s", kind)
	}

	sub := newFakeSubscription()
	f.channels[kind] = ch
	f.subs[kind] = sub
	return sub, nil
}

func (f *fakeSubscriber) deliver(kind contract.Kind, lg types.Log) {
	f.mu.Lock()
	ch := f.channels[kind]
	f.mu.Unlock()
	ch <- lg
}

func (f *fakeSubscriber) registered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func kindTopic(kind contract.Kind) common.Hash {
	return crypto.Keccak256Hash([]byte(kind))
}

func kindForTopic(topic common.Hash) contract.Kind {
	for _, kind := range contract.Kinds() {
		if kindTopic(kind) == topic {
			return kind
		}
	}
	return ""
}

// fakeDecoder routes each log to a pre-registered event (or decode error)
// keyed by the log's tx hash.
type fakeDecoder struct {
	mu     sync.Mutex
	events map[common.Hash]contract.Event
	errs   map[common.Hash]error
	nextTx uint64
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		events: make(map[common.Hash]contract.Event),
		errs:   make(map[common.Hash]error),
	}
}

func (d *fakeDecoder) FilterQuery(kind contract.Kind) ethereum.FilterQuery {
	return ethereum.FilterQuery{Topics: [][]common.Hash{{kindTopic(kind)}}}
}

func (d *fakeDecoder) DecodeEvent(lg types.Log) (contract.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.errs[lg.TxHash]; ok {
		return nil, err
	}
	evt, ok := d.events[lg.TxHash]
	if !ok {
		return nil, contract.ErrUnknownEvent
	}
	return evt, nil
}

// logFor registers evt under a fresh tx hash and returns the log carrying it.
func (d *fakeDecoder) logFor(evt contract.Event, block uint64) types.Log {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextTx++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", d.nextTx)))
	d.events[hash] = evt
	return types.Log{BlockNumber: block, TxHash: hash}
}

// badLog registers a decode failure under a fresh tx hash.
func (d *fakeDecoder) badLog(block uint64) types.Log {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextTx++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", d.nextTx)))
	d.errs[hash] = fmt.Errorf("decode: corrupt payload")
	return types.Log{BlockNumber: block, TxHash: hash}
}

// fixedResolver maps block N to unix time 1000+N.
type fixedResolver struct{}

func (fixedResolver) BlockTime(_ context.Context, blockNumber uint64) (time.Time, error) {
	return time.Unix(int64(1000+blockNumber), 0).UTC(), nil
}

// memWriter is an in-memory Writer mirroring the store's semantics,
// including the product-scoped status update.
type memWriter struct {
	mu            sync.Mutex
	manufacturers map[string]domain.Manufacturer
	products      map[string]domain.Product
	items         map[string]*domain.ProductItem
	history       []domain.Transaction
	toxic         []domain.ToxicItem

	productLookups map[string]int
}

func newMemWriter() *memWriter {
	return &memWriter{
		manufacturers:  make(map[string]domain.Manufacturer),
		products:       make(map[string]domain.Product),
		items:          make(map[string]*domain.ProductItem),
		productLookups: make(map[string]int),
	}
}

func (w *memWriter) CreateManufacturer(_ context.Context, m domain.Manufacturer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.manufacturers[m.ID]; ok {
		return storage.ErrDuplicateKey
	}
	w.manufacturers[m.ID] = m
	return nil
}

func (w *memWriter) CreateProduct(_ context.Context, p domain.Product) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.products[p.ID]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := w.manufacturers[p.ManufacturerID]; !ok {
		return storage.ErrForeignKeyViolation
	}
	w.products[p.ID] = p
	return nil
}

func (w *memWriter) CreateProductItems(_ context.Context, productID string, itemIDs []string, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range itemIDs {
		if _, ok := w.items[id]; ok {
			return storage.ErrDuplicateKey
		}
	}
	for _, id := range itemIDs {
		w.items[id] = &domain.ProductItem{
			ID:        id,
			ProductID: productID,
			Status:    domain.StatusManufactured,
			Timestamp: ts,
		}
		w.history = append(w.history, domain.Transaction{
			ID:            fmt.Sprintf("txn-%d", len(w.history)+1),
			ProductItemID: id,
			Status:        domain.StatusManufactured,
			Timestamp:     ts,
		})
	}
	return nil
}

func (w *memWriter) UpdateItemsStatus(_ context.Context, itemIDs []string, status domain.ProductStatus, ts time.Time) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	scoped := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		scoped[id] = true
	}

	var affected int64
	for _, item := range w.items {
		if scoped[item.ProductID] {
			item.Status = status
			item.Timestamp = ts
			affected++
		}
	}
	for _, id := range itemIDs {
		w.history = append(w.history, domain.Transaction{
			ID:            fmt.Sprintf("txn-%d", len(w.history)+1),
			ProductItemID: id,
			Status:        status,
			Timestamp:     ts,
		})
	}
	return affected, nil
}

func (w *memWriter) ProductExists(_ context.Context, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.productLookups[id]++
	_, ok := w.products[id]
	return ok, nil
}

func (w *memWriter) CreateToxicItem(_ context.Context, t domain.ToxicItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.products[t.ProductID]; !ok {
		return storage.ErrForeignKeyViolation
	}
	t.ID = fmt.Sprintf("toxic-%d", len(w.toxic)+1)
	w.toxic = append(w.toxic, t)
	return nil
}

func (w *memWriter) snapshot(fn func(w *memWriter)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}
