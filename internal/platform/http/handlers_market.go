package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aicolabsdev/aicolabs/internal/market"
	"github.com/aicolabsdev/aicolabs/internal/platform/auth"
	"github.com/aicolabsdev/aicolabs/internal/platform/dto"
	"github.com/aicolabsdev/aicolabs/internal/platform/pubsub"
	"github.com/aicolabsdev/aicolabs/pkg/contracts/events"
)

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.ledger.List(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	out := make([]dto.MarketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, dto.FromMarket(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// getMarket retorna o snapshot do mercado com suas apostas
func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	bets, err := s.ledger.ListBets(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	out := dto.MarketDetailResponse{Market: dto.FromMarket(m)}
	out.Bets = make([]dto.BetResponse, 0, len(bets))
	for _, b := range bets {
		out.Bets = append(out.Bets, dto.FromBet(b))
	}

	// Mercado resolvido carrega os payouts gravados na resolução
	if m.Resolved() {
		settlements, err := s.ledger.ListSettlements(r.Context(), id)
		if err != nil {
			s.writeLedgerError(w, err)
			return
		}
		for _, st := range settlements {
			out.Settlements = append(out.Settlements, dto.FromSettlement(st))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listMarketBets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ledger.Get(r.Context(), id); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	bets, err := s.ledger.ListBets(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	out := make([]dto.BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, dto.FromBet(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// createMarket abre um mercado novo sobre um vídeo (operação de operador)
func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.VideoID == "" || req.Question == "" || req.EndTime.IsZero() {
		writeError(w, http.StatusBadRequest, "videoId, question and endTime required")
		return
	}
	if !req.EndTime.After(s.now()) {
		writeError(w, http.StatusBadRequest, "endTime must be in the future")
		return
	}

	m, err := s.ledger.Create(r.Context(), req.VideoID, req.Question, req.EndTime)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromMarket(m))
}

// placeBet aceita a aposta de um agente autenticado num mercado aberto
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	agentID, _ := auth.AgentID(r.Context())
	marketID := chi.URLParam(r, "id")

	var req dto.PlaceBetRequest
	if err := decodeJSON(r, &req); err != nil {
		// inclui valores monetários em float: rejeitados antes de chegar no core
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "amount_cents must be positive")
		return
	}

	bet, snapshot, err := s.ledger.PlaceBet(r.Context(), marketID, agentID, side, req.AmountCents, s.now())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	if s.OnBetPlaced != nil {
		s.OnBetPlaced()
	}

	if s.publ != nil {
		_ = s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:       bet.ID,
			MarketID:    bet.MarketID,
			AgentID:     bet.AgentID,
			Side:        string(bet.Side),
			AmountCents: bet.AmountCents,
		})
	}
	s.broadcast(r, snapshot.ID, dto.FromMarket(snapshot))

	writeJSON(w, http.StatusOK, dto.FromBet(bet))
}

// resolveMarket declara o desfecho e devolve o relatório de resolução.
// A transição de estado e a gravação dos settlements já aconteceram de forma
// atômica no ledger; evento e broadcast aqui são melhor esforço.
func (s *Server) resolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")

	var req dto.ResolveMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	outcome, err := market.ParseSide(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, settlements, err := s.ledger.Resolve(r.Context(), marketID, outcome, s.now())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	if s.OnMarketResolved != nil {
		s.OnMarketResolved(string(outcome))
	}

	report := dto.ResolutionReport{Market: dto.FromMarket(m)}
	entries := make([]events.SettlementEntry, 0, len(settlements))
	for _, st := range settlements {
		report.Settlements = append(report.Settlements, dto.FromSettlement(st))
		entries = append(entries, events.SettlementEntry{
			BetID:       st.BetID,
			AgentID:     st.AgentID,
			PayoutCents: st.PayoutCents,
		})
	}

	if s.publ != nil {
		if err := s.publ.PublishMarketResolved(r.Context(), events.MarketResolved{
			MarketID:       m.ID,
			VideoID:        m.VideoID,
			Outcome:        string(m.Outcome),
			TotalPoolCents: m.TotalPoolCents,
			Settlements:    entries,
		}); err != nil {
			s.log.Warn("publish market_resolved", zap.String("marketId", m.ID), zap.Error(err))
		}
	}
	s.broadcast(r, m.ID, report)

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) broadcast(r *http.Request, marketID string, payload any) {
	if s.bcast == nil {
		return
	}
	b, _ := json.Marshal(pubsub.WSUpdate{MarketID: marketID, Payload: payload})
	if err := s.bcast.Publish(r.Context(), b); err != nil {
		s.log.Warn("ws broadcast publish", zap.Error(err))
	}
}
