// Package market implements a continuous double auction per resource.
// Gold is the settlement currency and cannot be listed.
package market

import (
	"sort"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
)

// Side is buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order is a resting limit order. Reserved is what the owner has locked:
// gold for a buy (Quantity × LimitPrice), the resource itself for a sell.
type Order struct {
	ID         string               `json:"id"`
	Side       Side                 `json:"side"`
	Resource   catalog.ResourceKind `json:"resource"`
	Quantity   float64              `json:"quantity"`
	LimitPrice float64              `json:"limit_price"`
	OwnerID    string               `json:"owner_id"`
	Reserved   float64              `json:"reserved"`
	PlacedAt   time.Time            `json:"placed_at"`
	Seq        uint64               `json:"seq"` // Time priority on equal prices
}

// Book holds the resting orders for one resource. Bids are sorted by
// price descending, asks by price ascending, both oldest first on ties.
type Book struct {
	Resource catalog.ResourceKind
	Bids     []*Order
	Asks     []*Order
}

func newBook(r catalog.ResourceKind) *Book {
	return &Book{Resource: r}
}

// ahead reports whether a has priority over b on the given side.
func ahead(side Side, a, b *Order) bool {
	if a.LimitPrice != b.LimitPrice {
		if side == Buy {
			return a.LimitPrice > b.LimitPrice
		}
		return a.LimitPrice < b.LimitPrice
	}
	return a.Seq < b.Seq
}

func (b *Book) insert(o *Order) {
	list := &b.Asks
	if o.Side == Buy {
		list = &b.Bids
	}
	i := sort.Search(len(*list), func(i int) bool { return ahead(o.Side, o, (*list)[i]) })
	*list = append(*list, nil)
	copy((*list)[i+1:], (*list)[i:])
	(*list)[i] = o
}

func (b *Book) remove(id string) *Order {
	for _, list := range []*[]*Order{&b.Bids, &b.Asks} {
		for i, o := range *list {
			if o.ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return o
			}
		}
	}
	return nil
}

// BestBid returns the highest bid, or nil.
func (b *Book) BestBid() *Order {
	if len(b.Bids) == 0 {
		return nil
	}
	return b.Bids[0]
}

// BestAsk returns the lowest ask, or nil.
func (b *Book) BestAsk() *Order {
	if len(b.Asks) == 0 {
		return nil
	}
	return b.Asks[0]
}

// Depth summarizes resting quantity by price on each side.
type Depth struct {
	Resource catalog.ResourceKind `json:"resource"`
	Bids     []Level              `json:"bids"`
	Asks     []Level              `json:"asks"`
}

// Level is the aggregate quantity resting at one price.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Orders   int     `json:"orders"`
}

func aggregate(list []*Order) []Level {
	var out []Level
	for _, o := range list {
		if n := len(out); n > 0 && out[n-1].Price == o.LimitPrice {
			out[n-1].Quantity += o.Quantity
			out[n-1].Orders++
			continue
		}
		out = append(out, Level{Price: o.LimitPrice, Quantity: o.Quantity, Orders: 1})
	}
	return out
}

// Depth returns the aggregated book.
func (b *Book) Depth() Depth {
	return Depth{Resource: b.Resource, Bids: aggregate(b.Bids), Asks: aggregate(b.Asks)}
}
