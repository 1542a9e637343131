package api

import (
	"net/http"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/market"
	"github.com/talgya/archipelago/internal/validation"
)

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Building catalog.BuildingKind `json:"building"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.Game.BuildBuilding(r.PathValue("id"), req.Building)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleCancelBuild(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Game.CancelBuilding(r.PathValue("id"), r.PathValue("entry"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleRecruit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit     catalog.UnitKind `json:"unit"`
		Quantity int              `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.Game.RecruitUnit(r.PathValue("id"), req.Unit, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleCancelRecruit(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Game.CancelRecruitment(r.PathValue("id"), r.PathValue("entry"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Technology catalog.TechKey `json:"technology"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.Game.StartResearch(r.PathValue("id"), req.Technology)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleCancelResearch(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Game.CancelResearch(r.PathValue("entry"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string    `json:"target"`
		Army   armyParam `json:"army"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Game.Attack(r.PathValue("id"), req.Target, req.Army.stack())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// handleSimulate previews a battle without changing anything.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attacker string    `json:"attacker"`
		Defender string    `json:"defender"`
		Army     armyParam `json:"army"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Game.CalculateCombatOutcome(req.Attacker, req.Defender, req.Army.stack())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

type placeOrderResponse struct {
	Order  market.Order   `json:"order"`
	Trades []market.Trade `json:"trades"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CityID     string               `json:"city_id"`
		Side       market.Side          `json:"side"`
		Resource   catalog.ResourceKind `json:"resource"`
		Quantity   float64              `json:"quantity"`
		LimitPrice float64              `json:"limit_price"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		order  market.Order
		trades []market.Trade
		err    error
	)
	switch req.Side {
	case market.Buy:
		order, trades, err = s.Game.PlaceBuyOrder(req.CityID, req.Resource, req.Quantity, req.LimitPrice)
	case market.Sell:
		order, trades, err = s.Game.PlaceSellOrder(req.CityID, req.Resource, req.Quantity, req.LimitPrice)
	default:
		err = validation.Errorf(validation.InvalidArgument, "side must be %q or %q", market.Buy, market.Sell)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []market.Trade{}
	}
	writeJSON(w, placeOrderResponse{Order: order, Trades: trades})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	refund, err := s.Game.CancelOrder(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, refund)
}
