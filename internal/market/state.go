package market

import (
	"github.com/shopspring/decimal"

	"github.com/talgya/archipelago/internal/catalog"
)

// State is the serializable form of an Exchange.
type State struct {
	Orders       []Order                            `json:"orders"`
	History      map[catalog.ResourceKind][]float64 `json:"history"`
	Seq          uint64                             `json:"seq"`
	TaxCollected float64                            `json:"tax_collected"`
}

// State captures the books and price history.
func (x *Exchange) State() State {
	s := State{
		Orders:       x.Orders(),
		History:      make(map[catalog.ResourceKind][]float64, len(x.history)),
		Seq:          x.seq,
		TaxCollected: x.TaxCollected(),
	}
	for r, h := range x.history {
		if fills := h.Fills(); len(fills) > 0 {
			s.History[r] = fills
		}
	}
	return s
}

// Restore replaces the books and history with s. Reservations are taken as
// already held; nothing is charged and nothing is matched.
func (x *Exchange) Restore(s State) {
	x.index = make(map[string]*Order, len(s.Orders))
	for _, r := range catalog.AllResources() {
		if catalog.Tradeable(r) {
			x.books[r] = newBook(r)
			x.history[r] = &PriceHistory{}
		}
	}
	for i := range s.Orders {
		o := s.Orders[i]
		book, ok := x.books[o.Resource]
		if !ok || o.Quantity <= 0 {
			continue
		}
		book.insert(&o)
		x.index[o.ID] = &o
	}
	for r, fills := range s.History {
		h, ok := x.history[r]
		if !ok {
			continue
		}
		for _, p := range fills {
			h.Record(p)
		}
	}
	x.seq = s.Seq
	x.taxTotal = decimal.NewFromFloat(s.TaxCollected)
}
