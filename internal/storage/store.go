package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/recyclechain/indexer/internal/domain"
)

// Store performs the per-event writes. Multi-row writes run inside a single
// transaction; partial application is never visible.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateManufacturer inserts one manufacturer row. Returns ErrDuplicateKey
// when the address is already registered (duplicate event delivery).
func (s *Store) CreateManufacturer(ctx context.Context, m domain.Manufacturer) error {
	sql := `
		INSERT INTO manufacturers (id, name, location, contact, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.pool.Exec(ctx, sql, m.ID, m.Name, m.Location, m.Contact, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert manufacturer %s: %w", m.ID, mapPgError(err))
	}
	return nil
}

// CreateProduct inserts one product row. Returns ErrForeignKeyViolation when
// the manufacturer has not been registered yet.
func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	sql := `
		INSERT INTO products (id, name, timestamp, manufacturer_id)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.pool.Exec(ctx, sql, p.ID, p.Name, p.Timestamp, p.ManufacturerID)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, mapPgError(err))
	}
	return nil
}

// CreateProductItems inserts one MANUFACTURED item row per id and one
// matching history row per id, atomically.
func (s *Store) CreateProductItems(ctx context.Context, productID string, itemIDs []string, ts time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		itemSQL := `
			INSERT INTO product_items (id, product_id, status, timestamp)
			SELECT unnest($1::text[]), $2, $3, $4
		`
		if _, err := tx.Exec(ctx, itemSQL, itemIDs, productID, string(domain.StatusManufactured), ts); err != nil {
			return fmt.Errorf("insert product items: %w", err)
		}

		txnSQL := `
			INSERT INTO transactions (id, product_item_id, status, timestamp)
			SELECT unnest($1::text[]), unnest($2::text[]), $3, $4
		`
		if _, err := tx.Exec(ctx, txnSQL, newIDs(len(itemIDs)), itemIDs, string(domain.StatusManufactured), ts); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create product items for product %s: %w", productID, mapPgError(err))
	}
	return nil
}

// UpdateItemsStatus sets the new status on every item whose product id is in
// ids and appends one history row per id, atomically. The UPDATE is scoped
// by product id membership, not item id: a status change fans out to every
// sibling item of the referenced products. Returns the number of item rows
// updated.
func (s *Store) UpdateItemsStatus(ctx context.Context, itemIDs []string, status domain.ProductStatus, ts time.Time) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		updateSQL := `
			UPDATE product_items
			SET status = $1, timestamp = $2
			WHERE product_id = ANY($3::text[])
		`
		tag, err := tx.Exec(ctx, updateSQL, string(status), ts, itemIDs)
		if err != nil {
			return fmt.Errorf("update product items: %w", err)
		}
		affected = tag.RowsAffected()

		txnSQL := `
			INSERT INTO transactions (id, product_item_id, status, timestamp)
			SELECT unnest($1::text[]), unnest($2::text[]), $3, $4
		`
		if _, err := tx.Exec(ctx, txnSQL, newIDs(len(itemIDs)), itemIDs, string(status), ts); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update items status: %w", mapPgError(err))
	}
	return affected, nil
}

// ProductExists reports whether a product row exists.
func (s *Store) ProductExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	sql := `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
	if err := s.db.pool.QueryRow(ctx, sql, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("product exists %s: %w", id, err)
	}
	return exists, nil
}

// CreateToxicItem inserts one toxic item row with a generated id. Returns
// ErrForeignKeyViolation when the product row is still missing.
func (s *Store) CreateToxicItem(ctx context.Context, t domain.ToxicItem) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	sql := `
		INSERT INTO toxic_items (id, name, weight, timestamp, product_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.pool.Exec(ctx, sql, id, t.Name, t.Weight, t.Timestamp, t.ProductID)
	if err != nil {
		return fmt.Errorf("insert toxic item for product %s: %w", t.ProductID, mapPgError(err))
	}
	return nil
}

func newIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}
