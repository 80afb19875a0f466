package model

import "time"

// ItemState is the position of a coffee lot in the custody chain.
// States advance strictly forward, one step per transition.
type ItemState uint8

const (
	StateHarvested ItemState = iota // Lot created by farmer
	StateProcessed                  // Beans processed by farmer
	StatePacked                     // Lot packed by farmer
	StateForSale                    // Listed with a price by farmer
	StateSold                       // Bought by a distributor (settlement done)
	StateShipped                    // Shipped by the buying distributor
	StateReceived                   // Received by a retailer
	StatePurchased                  // Purchased by an end consumer (terminal)
)

var itemStateNames = [...]string{
	"Harvested", "Processed", "Packed", "ForSale",
	"Sold", "Shipped", "Received", "Purchased",
}

func (s ItemState) String() string {
	if int(s) < len(itemStateNames) {
		return itemStateNames[s]
	}
	return "Unknown"
}

// Valid reports whether s is one of the eight lifecycle states.
func (s ItemState) Valid() bool {
	return int(s) < len(itemStateNames)
}

// Item is the central record for tracking one coffee lot through the supply
// chain, keyed by UPC. Provenance fields are written once at harvest; owner,
// state and the downstream party IDs are the only fields later transitions
// may touch.
type Item struct {
	ObjectType string `json:"objectType"` // "Item"

	SKU       uint64 `json:"sku"`       // Global harvest sequence number, starts at 1
	UPC       uint64 `json:"upc"`       // Caller-supplied product code, unique forever
	ProductID uint64 `json:"productId"` // SKU + UPC, kept for external compatibility

	OwnerID    string `json:"ownerId"`
	OwnerAlias string `json:"ownerAlias"`

	OriginFarmerID        string `json:"originFarmerId"`
	OriginFarmerAlias     string `json:"originFarmerAlias"`
	OriginFarmName        string `json:"originFarmName"`
	OriginFarmInformation string `json:"originFarmInformation"`
	OriginFarmLatitude    string `json:"originFarmLatitude"`
	OriginFarmLongitude   string `json:"originFarmLongitude"`
	ProductNotes          string `json:"productNotes"`

	ProductPrice uint64    `json:"productPrice"` // Zero until listed for sale
	State        ItemState `json:"state"`
	StateName    string    `json:"stateName"`

	DistributorID    string `json:"distributorId"`
	DistributorAlias string `json:"distributorAlias"`
	RetailerID       string `json:"retailerId"`
	RetailerAlias    string `json:"retailerAlias"`
	ConsumerID       string `json:"consumerId"`
	ConsumerAlias    string `json:"consumerAlias"`

	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// ItemProvenanceView is the legacy origin-facing read view of an item.
type ItemProvenanceView struct {
	SKU                   uint64 `json:"sku"`
	UPC                   uint64 `json:"upc"`
	OwnerID               string `json:"ownerId"`
	OriginFarmerID        string `json:"originFarmerId"`
	OriginFarmName        string `json:"originFarmName"`
	OriginFarmInformation string `json:"originFarmInformation"`
	OriginFarmLatitude    string `json:"originFarmLatitude"`
	OriginFarmLongitude   string `json:"originFarmLongitude"`
}

// ItemCommercialView is the legacy commerce-facing read view of an item.
type ItemCommercialView struct {
	SKU           uint64    `json:"sku"`
	UPC           uint64    `json:"upc"`
	ProductID     uint64    `json:"productId"`
	ProductNotes  string    `json:"productNotes"`
	ProductPrice  uint64    `json:"productPrice"`
	State         ItemState `json:"state"`
	StateName     string    `json:"stateName"`
	DistributorID string    `json:"distributorId"`
	RetailerID    string    `json:"retailerId"`
	ConsumerID    string    `json:"consumerId"`
}

// ItemHistoryEntry is one ledger revision of an item, as reported by the
// peer's history index.
type ItemHistoryEntry struct {
	TxID       string    `json:"txId"`
	Timestamp  time.Time `json:"timestamp"`
	IsDelete   bool      `json:"isDelete"`
	State      string    `json:"state"`
	OwnerID    string    `json:"ownerId"`
	OwnerAlias string    `json:"ownerAlias"`
}

// AuditEvent is one immutable entry of the append-only audit log. Lifecycle
// transitions carry the item's UPC and new state; membership changes carry
// a zero UPC and an empty state.
type AuditEvent struct {
	ObjectType string    `json:"objectType"` // "Audit"
	Seq        uint64    `json:"seq"`
	UPC        uint64    `json:"upc"`
	Kind       string    `json:"kind"`
	ActorID    string    `json:"actorId"`
	ActorAlias string    `json:"actorAlias"`
	NewState   string    `json:"newState"`
	TxID       string    `json:"txId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Account holds the settlement balance of one actor.
type Account struct {
	ObjectType    string    `json:"objectType"` // "Account"
	ActorID       string    `json:"actorId"`
	Balance       uint64    `json:"balance"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}
