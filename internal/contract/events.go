package contract

// Kind identifies one of the RecycleChain contract's event types.
type Kind string

const (
	KindManufacturerRegistered Kind = "ManufacturerRegistered"
	KindProductCreated         Kind = "ProductCreated"
	KindProductItemsAdded      Kind = "ProductItemAdded"
	KindItemsStatusChanged     Kind = "ProductItemsStatusChanged"
	KindToxicItemCreated       Kind = "ToxicItemCreated"
)

// Kinds returns every event kind in registration order.
func Kinds() []Kind {
	return []Kind{
		KindManufacturerRegistered,
		KindProductCreated,
		KindProductItemsAdded,
		KindItemsStatusChanged,
		KindToxicItemCreated,
	}
}

// Event is a decoded contract log. All chain-native numeric types are
// normalized to strings or int64 before leaving this package.
type Event interface {
	Kind() Kind
}

// ManufacturerRegistered announces a new manufacturer.
type ManufacturerRegistered struct {
	ManufacturerID string // on-chain address
	Name           string
	Location       string
	Contact        string
	BlockNumber    uint64
}

func (ManufacturerRegistered) Kind() Kind { return KindManufacturerRegistered }

// ProductCreated announces a new product owned by a manufacturer.
type ProductCreated struct {
	ProductID      string // uint256 stringified decimal
	Name           string
	ManufacturerID string
	BlockNumber    uint64
}

func (ProductCreated) Kind() Kind { return KindProductCreated }

// ProductItemsAdded carries the batch of item ids minted for a product.
type ProductItemsAdded struct {
	ProductID   string
	ItemIDs     []string
	BlockNumber uint64
}

func (ProductItemsAdded) Kind() Kind { return KindProductItemsAdded }

// ItemsStatusChanged carries a status transition for a set of items.
type ItemsStatusChanged struct {
	ItemIDs     []string
	StatusCode  int64
	BlockNumber uint64
}

func (ItemsStatusChanged) Kind() Kind { return KindItemsStatusChanged }

// ToxicItemCreated attaches a toxic material record to a product.
type ToxicItemCreated struct {
	ProductID   string
	Name        string
	Weight      int64
	BlockNumber uint64
}

func (ToxicItemCreated) Kind() Kind { return KindToxicItemCreated }
