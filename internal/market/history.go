package market

// History sizes.
const (
	HistorySize = 100
	PriceWindow = 10
)

// PriceHistory keeps the most recent fill prices for one resource.
type PriceHistory struct {
	fills []float64
}

// Record appends a fill price, dropping the oldest past HistorySize.
func (h *PriceHistory) Record(price float64) {
	h.fills = append(h.fills, price)
	if len(h.fills) > HistorySize {
		h.fills = h.fills[len(h.fills)-HistorySize:]
	}
}

// Fills returns a copy of the recorded prices, oldest first.
func (h *PriceHistory) Fills() []float64 {
	return append([]float64(nil), h.fills...)
}

// Current is the mean of the last PriceWindow fills, or base when there
// are none.
func (h *PriceHistory) Current(base float64) float64 {
	n := len(h.fills)
	if n == 0 {
		return base
	}
	window := h.fills[max(0, n-PriceWindow):]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	return sum / float64(len(window))
}
