package domain

import (
	"errors"
	"fmt"
)

// ProductStatus is the lifecycle state of a product item.
type ProductStatus string

const (
	StatusManufactured ProductStatus = "MANUFACTURED"
	StatusRecycled     ProductStatus = "RECYCLED"
	StatusReturned     ProductStatus = "RETURNED"
	StatusSold         ProductStatus = "SOLD"
)

// ErrUnknownStatusCode is returned for status codes outside the contract's
// enum range. This means the contract and this binding disagree on the enum
// ordering, not a transient fault.
var ErrUnknownStatusCode = errors.New("unknown status code")

// StatusFromCode translates the contract's numeric ProductStatus enum to the
// domain status. The mapping must stay in lock-step with the contract's enum
// declaration order.
func StatusFromCode(code int64) (ProductStatus, error) {
	switch code {
	case 0:
		return StatusManufactured, nil
	case 1:
		return StatusRecycled, nil
	case 2:
		return StatusReturned, nil
	case 3:
		return StatusSold, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownStatusCode, code)
	}
}
