// Package contract binds the RecycleChain contract's event ABI: filter
// queries per event kind and decoding of raw logs into typed events.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownEvent is returned for logs whose topic0 matches none of the
// bound event signatures.
var ErrUnknownEvent = errors.New("unknown contract event")

// recycleChainABI declares the event surface of the RecycleChain contract.
// Argument order must match the deployed contract exactly.
const recycleChainABI = `[
  {"type":"event","name":"ManufacturerRegistered","anonymous":false,"inputs":[
    {"name":"manufacturer","type":"address","indexed":false},
    {"name":"name","type":"string","indexed":false},
    {"name":"location","type":"string","indexed":false},
    {"name":"contact","type":"string","indexed":false}]},
  {"type":"event","name":"ProductCreated","anonymous":false,"inputs":[
    {"name":"productId","type":"uint256","indexed":false},
    {"name":"name","type":"string","indexed":false},
    {"name":"manufacturer","type":"address","indexed":false}]},
  {"type":"event","name":"ProductItemAdded","anonymous":false,"inputs":[
    {"name":"productItemIds","type":"string[]","indexed":false},
    {"name":"productId","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProductItemsStatusChanged","anonymous":false,"inputs":[
    {"name":"productItemIds","type":"string[]","indexed":false},
    {"name":"statusIndex","type":"uint256","indexed":false}]},
  {"type":"event","name":"ToxicItemCreated","anonymous":false,"inputs":[
    {"name":"productId","type":"uint256","indexed":false},
    {"name":"name","type":"string","indexed":false},
    {"name":"weight","type":"uint256","indexed":false}]}
]`

// Binding ties the parsed ABI to a deployed contract address.
type Binding struct {
	abi     abi.ABI
	address common.Address
	kinds   map[common.Hash]Kind
}

// NewBinding parses the ABI and validates the contract address.
func NewBinding(address string) (*Binding, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}

	parsed, err := abi.JSON(strings.NewReader(recycleChainABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	b := &Binding{
		abi:     parsed,
		address: common.HexToAddress(address),
		kinds:   make(map[common.Hash]Kind),
	}
	for _, kind := range Kinds() {
		ev, ok := parsed.Events[string(kind)]
		if !ok {
			return nil, fmt.Errorf("event %s missing from ABI", kind)
		}
		b.kinds[ev.ID] = kind
	}
	return b, nil
}

// Address returns the bound contract address.
func (b *Binding) Address() common.Address {
	return b.address
}

// FilterQuery builds the log filter for a single event kind: the contract
// address plus the kind's topic0 signature.
func (b *Binding) FilterQuery(kind Kind) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{b.address},
		Topics:    [][]common.Hash{{b.abi.Events[string(kind)].ID}},
	}
}

// DecodeEvent normalizes a raw log into a typed event. Addresses come out
// as checksummed hex, uint256 ids as decimal strings, small numerics as
// int64.
func (b *Binding) DecodeEvent(lg types.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("%w: log has no topics", ErrUnknownEvent)
	}
	kind, ok := b.kinds[lg.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, lg.Topics[0].Hex())
	}

	vals, err := b.abi.Unpack(string(kind), lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", kind, err)
	}

	switch kind {
	case KindManufacturerRegistered:
		addr, err := argAddress(vals, 0)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		name, err := argString(vals, 1)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		location, err := argString(vals, 2)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		contact, err := argString(vals, 3)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		return ManufacturerRegistered{
			ManufacturerID: addr,
			Name:           name,
			Location:       location,
			Contact:        contact,
			BlockNumber:    lg.BlockNumber,
		}, nil

	case KindProductCreated:
		productID, err := argBigInt(vals, 0)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		name, err := argString(vals, 1)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		addr, err := argAddress(vals, 2)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		return ProductCreated{
			ProductID:      productID.String(),
			Name:           name,
			ManufacturerID: addr,
			BlockNumber:    lg.BlockNumber,
		}, nil

	case KindProductItemsAdded:
		itemIDs, err := argStrings(vals, 0)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		productID, err := argBigInt(vals, 1)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		return ProductItemsAdded{
			ProductID:   productID.String(),
			ItemIDs:     itemIDs,
			BlockNumber: lg.BlockNumber,
		}, nil

	case KindItemsStatusChanged:
		itemIDs, err := argStrings(vals, 0)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		statusIndex, err := argBigInt(vals, 1)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		return ItemsStatusChanged{
			ItemIDs:     itemIDs,
			StatusCode:  statusIndex.Int64(),
			BlockNumber: lg.BlockNumber,
		}, nil

	case KindToxicItemCreated:
		productID, err := argBigInt(vals, 0)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		name, err := argString(vals, 1)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		weight, err := argBigInt(vals, 2)
		if err != nil {
			return nil, decodeErr(kind, err)
		}
		return ToxicItemCreated{
			ProductID:   productID.String(),
			Name:        name,
			Weight:      weight.Int64(),
			BlockNumber: lg.BlockNumber,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
}

func decodeErr(kind Kind, err error) error {
	return fmt.Errorf("decode %s: %w", kind, err)
}

func argAddress(vals []any, i int) (string, error) {
	if i >= len(vals) {
		return "", fmt.Errorf("argument %d missing", i)
	}
	addr, ok := vals[i].(common.Address)
	if !ok {
		return "", fmt.Errorf("argument %d: expected address, got %T", i, vals[i])
	}
	return addr.Hex(), nil
}

func argString(vals []any, i int) (string, error) {
	if i >= len(vals) {
		return "", fmt.Errorf("argument %d missing", i)
	}
	s, ok := vals[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, vals[i])
	}
	return s, nil
}

func argStrings(vals []any, i int) ([]string, error) {
	if i >= len(vals) {
		return nil, fmt.Errorf("argument %d missing", i)
	}
	s, ok := vals[i].([]string)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected string[], got %T", i, vals[i])
	}
	return s, nil
}

func argBigInt(vals []any, i int) (*big.Int, error) {
	if i >= len(vals) {
		return nil, fmt.Errorf("argument %d missing", i)
	}
	n, ok := vals[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected uint256, got %T", i, vals[i])
	}
	return n, nil
}
