// Package domain holds the supply-chain entities materialized from
// RecycleChain contract events.
package domain

import "time"

// Manufacturer is a registered producer, keyed by its on-chain address.
// Created once per ManufacturerRegistered event and never mutated.
type Manufacturer struct {
	ID        string // on-chain address, checksummed hex
	Name      string
	Location  string
	Contact   string
	Timestamp time.Time // block time of the registration event
}

// Product is keyed by the on-chain product id (decimal string).
type Product struct {
	ID             string
	Name           string
	Timestamp      time.Time
	ManufacturerID string // FK to manufacturers
}

// ProductItem is an individual unit of a product. Status is overwritten
// in place by status-change events; history lives in Transaction rows.
type ProductItem struct {
	ID        string
	ProductID string // FK to products
	Status    ProductStatus
	Timestamp time.Time // last status change
}

// Transaction is one row of the append-only status history: one row per
// item per transition, including the initial MANUFACTURED transition.
type Transaction struct {
	ID            string // system-generated
	ProductItemID string
	Status        ProductStatus
	Timestamp     time.Time
}

// ToxicItem records a toxic material attached to a product.
type ToxicItem struct {
	ID        string // system-generated
	Name      string
	Weight    int64
	Timestamp time.Time
	ProductID string // FK to products
}
