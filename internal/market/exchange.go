package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/validation"
)

// DefaultTaxRate is taken from the seller's proceeds on every fill.
const DefaultTaxRate = 0.05

// Ledger moves goods in and out of owners' stockpiles. Reserve must fail
// without side effects when the owner cannot cover amount.
type Ledger interface {
	Reserve(owner string, r catalog.ResourceKind, amount float64) error
	Credit(owner string, r catalog.ResourceKind, amount float64)
}

// Trade is one fill between a bid and an ask.
type Trade struct {
	ID             string               `json:"id"`
	Resource       catalog.ResourceKind `json:"resource"`
	Quantity       float64              `json:"quantity"`
	Price          float64              `json:"price"`
	Tax            float64              `json:"tax"`
	SellerProceeds float64              `json:"seller_proceeds"`
	BuyerRefund    float64              `json:"buyer_refund"`
	BuyOrderID     string               `json:"buy_order_id"`
	SellOrderID    string               `json:"sell_order_id"`
	BuyerID        string               `json:"buyer_id"`
	SellerID       string               `json:"seller_id"`
	At             time.Time            `json:"at"`
}

// Refund is what a cancellation returned to the owner.
type Refund struct {
	Order    Order                `json:"order"`
	Resource catalog.ResourceKind `json:"resource"` // Gold for a buy
	Amount   float64              `json:"amount"`
}

// Exchange holds one order book and price history per tradeable resource.
// It is not safe for concurrent use; the owning game serializes access.
type Exchange struct {
	ledger     Ledger
	taxRate    decimal.Decimal
	basePrices map[catalog.ResourceKind]float64
	books      map[catalog.ResourceKind]*Book
	history    map[catalog.ResourceKind]*PriceHistory
	index      map[string]*Order
	seq        uint64
	taxTotal   decimal.Decimal
}

// NewExchange creates an empty exchange settling through ledger.
func NewExchange(ledger Ledger, basePrices map[catalog.ResourceKind]float64, taxRate float64) *Exchange {
	x := &Exchange{
		ledger:     ledger,
		taxRate:    decimal.NewFromFloat(taxRate),
		basePrices: basePrices,
		books:      make(map[catalog.ResourceKind]*Book),
		history:    make(map[catalog.ResourceKind]*PriceHistory),
		index:      make(map[string]*Order),
	}
	for _, r := range catalog.AllResources() {
		if catalog.Tradeable(r) {
			x.books[r] = newBook(r)
			x.history[r] = &PriceHistory{}
		}
	}
	return x
}

// PlaceOrder validates, reserves and rests an order, then matches the book.
// The returned Order reflects the state after matching; a zero Quantity
// means it was filled completely.
func (x *Exchange) PlaceOrder(side Side, r catalog.ResourceKind, qty, limit float64, owner string, now time.Time) (Order, []Trade, error) {
	if side != Buy && side != Sell {
		return Order{}, nil, validation.Errorf(validation.InvalidArgument, "unknown side %q", side)
	}
	if !catalog.IsResource(r) {
		return Order{}, nil, validation.Errorf(validation.UnknownKind, "unknown resource %q", r)
	}
	if !catalog.Tradeable(r) {
		return Order{}, nil, validation.Errorf(validation.InvalidArgument, "%s cannot be traded", r)
	}
	if qty <= 0 || limit <= 0 {
		return Order{}, nil, validation.Errorf(validation.InvalidArgument, "quantity and limit price must be positive")
	}

	o := &Order{
		ID:         uuid.NewString(),
		Side:       side,
		Resource:   r,
		Quantity:   qty,
		LimitPrice: limit,
		OwnerID:    owner,
		PlacedAt:   now,
	}
	reserveKind, reserveAmount := r, qty
	if side == Buy {
		reserveKind = catalog.Gold
		reserveAmount = decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(limit)).InexactFloat64()
	}
	if err := x.ledger.Reserve(owner, reserveKind, reserveAmount); err != nil {
		return Order{}, nil, err
	}
	o.Reserved = reserveAmount

	x.seq++
	o.Seq = x.seq
	x.books[r].insert(o)
	x.index[o.ID] = o

	trades := x.match(r, now)
	return *o, trades, nil
}

// CancelOrder removes a resting order and refunds its remaining
// reservation.
func (x *Exchange) CancelOrder(id string) (Refund, error) {
	o, ok := x.index[id]
	if !ok {
		return Refund{}, validation.Errorf(validation.NotFound, "order %s not found", id)
	}
	x.books[o.Resource].remove(id)
	delete(x.index, id)

	kind := o.Resource
	if o.Side == Buy {
		kind = catalog.Gold
	}
	if o.Reserved > 0 {
		x.ledger.Credit(o.OwnerID, kind, o.Reserved)
	}
	refund := Refund{Order: *o, Resource: kind, Amount: o.Reserved}
	o.Reserved = 0
	refund.Order.Reserved = 0
	return refund, nil
}

// match fills crossing orders until the best bid is below the best ask.
func (x *Exchange) match(r catalog.ResourceKind, now time.Time) []Trade {
	book := x.books[r]
	var trades []Trade
	for {
		bid, ask := book.BestBid(), book.BestAsk()
		if bid == nil || ask == nil || bid.LimitPrice < ask.LimitPrice {
			return trades
		}
		trades = append(trades, x.fill(book, bid, ask, now))
	}
}

func (x *Exchange) fill(book *Book, bid, ask *Order, now time.Time) Trade {
	qty := decimal.NewFromFloat(min(bid.Quantity, ask.Quantity))
	bidPx := decimal.NewFromFloat(bid.LimitPrice)
	askPx := decimal.NewFromFloat(ask.LimitPrice)
	price := bidPx.Add(askPx).Div(decimal.NewFromInt(2))

	gross := qty.Mul(price)
	tax := gross.Mul(x.taxRate)
	proceeds := gross.Sub(tax)
	refund := bidPx.Sub(price).Mul(qty)
	bidRelease := qty.Mul(bidPx)

	x.ledger.Credit(bid.OwnerID, book.Resource, qty.InexactFloat64())
	x.ledger.Credit(ask.OwnerID, catalog.Gold, proceeds.InexactFloat64())
	if refund.IsPositive() {
		x.ledger.Credit(bid.OwnerID, catalog.Gold, refund.InexactFloat64())
	}
	x.taxTotal = x.taxTotal.Add(tax)

	bid.Quantity = decimal.NewFromFloat(bid.Quantity).Sub(qty).InexactFloat64()
	bid.Reserved = decimal.NewFromFloat(bid.Reserved).Sub(bidRelease).InexactFloat64()
	ask.Quantity = decimal.NewFromFloat(ask.Quantity).Sub(qty).InexactFloat64()
	ask.Reserved = decimal.NewFromFloat(ask.Reserved).Sub(qty).InexactFloat64()

	for _, o := range []*Order{bid, ask} {
		if o.Quantity <= 0 {
			o.Quantity = 0
			o.Reserved = 0
			book.remove(o.ID)
			delete(x.index, o.ID)
		}
	}

	px := price.InexactFloat64()
	x.history[book.Resource].Record(px)
	return Trade{
		ID:             uuid.NewString(),
		Resource:       book.Resource,
		Quantity:       qty.InexactFloat64(),
		Price:          px,
		Tax:            tax.InexactFloat64(),
		SellerProceeds: proceeds.InexactFloat64(),
		BuyerRefund:    refund.InexactFloat64(),
		BuyOrderID:     bid.ID,
		SellOrderID:    ask.ID,
		BuyerID:        bid.OwnerID,
		SellerID:       ask.OwnerID,
		At:             now,
	}
}

// Price returns the current price of r.
func (x *Exchange) Price(r catalog.ResourceKind) float64 {
	h, ok := x.history[r]
	if !ok {
		return 0
	}
	return h.Current(x.basePrices[r])
}

// History returns the recorded fill prices of r, oldest first.
func (x *Exchange) History(r catalog.ResourceKind) []float64 {
	if h, ok := x.history[r]; ok {
		return h.Fills()
	}
	return nil
}

// Depth returns the aggregated book for r.
func (x *Exchange) Depth(r catalog.ResourceKind) (Depth, error) {
	b, ok := x.books[r]
	if !ok {
		return Depth{}, validation.Errorf(validation.UnknownKind, "no market for %q", r)
	}
	return b.Depth(), nil
}

// Order returns a copy of a resting order.
func (x *Exchange) Order(id string) (Order, bool) {
	o, ok := x.index[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of every resting order, bids then asks per
// resource in catalog order.
func (x *Exchange) Orders() []Order {
	var out []Order
	for _, r := range catalog.AllResources() {
		b, ok := x.books[r]
		if !ok {
			continue
		}
		for _, o := range b.Bids {
			out = append(out, *o)
		}
		for _, o := range b.Asks {
			out = append(out, *o)
		}
	}
	return out
}

// TaxCollected is the total tax withheld from sellers.
func (x *Exchange) TaxCollected() float64 {
	return x.taxTotal.InexactFloat64()
}
