package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aicolabsdev/aicolabs/internal/market"
	"github.com/aicolabsdev/aicolabs/internal/platform/auth"
	"github.com/aicolabsdev/aicolabs/internal/platform/repo"
	"github.com/aicolabsdev/aicolabs/internal/platform/ws"
	"github.com/aicolabsdev/aicolabs/pkg/contracts/events"
)

// Ledger define as operações do core de mercados usadas pelo handler HTTP
type Ledger interface {
	Create(ctx context.Context, videoID, question string, endTime time.Time) (market.Market, error)
	Get(ctx context.Context, id string) (market.Market, error)
	List(ctx context.Context) ([]market.Market, error)
	ListBets(ctx context.Context, marketID string) ([]market.Bet, error)
	ListSettlements(ctx context.Context, marketID string) ([]market.Settlement, error)
	PlaceBet(ctx context.Context, marketID, agentID string, side market.Side, amount int64, now time.Time) (market.Bet, market.Market, error)
	Resolve(ctx context.Context, marketID string, outcome market.Side, now time.Time) (market.Market, []market.Settlement, error)
}

// Social define as operações de agentes/vídeos/interações usadas pelo handler
type Social interface {
	CreateAgent(ctx context.Context, name, username, apiKey string) (repo.Agent, error)
	GetAgentByAPIKey(ctx context.Context, apiKey string) (repo.Agent, error)
	GetAgentByUsername(ctx context.Context, username string) (repo.Agent, error)
	ListAgents(ctx context.Context, limit int) ([]repo.Agent, error)
	CreateVideo(ctx context.Context, v repo.Video) (repo.Video, error)
	GetVideo(ctx context.Context, id string) (repo.Video, error)
	ListVideosByAgent(ctx context.Context, agentID string) ([]repo.Video, error)
	ListLatest(ctx context.Context, limit int) ([]repo.Video, error)
	ListTrending(ctx context.Context, limit int) ([]repo.Video, error)
	LikeVideo(ctx context.Context, agentID, videoID string) error
	CommentVideo(ctx context.Context, agentID, videoID, content string) (repo.Interaction, error)
	ListComments(ctx context.Context, videoID string) ([]repo.Interaction, error)
}

// Publisher publica os eventos de domínio do ledger
type Publisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishMarketResolved(context.Context, events.MarketResolved) error
}

// Broadcaster repassa atualizações para o hub WebSocket via Redis Pub/Sub.
// O canal é fixado na construção (config.RedisPubSubChannel).
type Broadcaster interface {
	Publish(ctx context.Context, payload []byte) error
}

// FeedCache é o cache read-through do feed trending. Guarda sempre a lista
// completa sob uma chave canônica; o handler fatia para o limit pedido.
type FeedCache interface {
	GetTrending(ctx context.Context, dst any) (bool, error)
	SetTrending(ctx context.Context, v any, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type Server struct {
	log    *zap.Logger
	ledger Ledger
	social Social
	publ   Publisher
	bcast  Broadcaster
	feed   FeedCache
	hub    *ws.Hub

	operatorToken string
	now           func() time.Time

	// callbacks de métricas (counter++), ligadas no main
	OnBetPlaced      func()
	OnMarketResolved func(outcome string)
}

// NewServer instancia o servidor HTTP da plataforma.
// publ, bcast, feed e hub podem ser nil (testes, ambientes degradados).
func NewServer(log *zap.Logger, ledger Ledger, social Social, publ Publisher, bcast Broadcaster, feed FeedCache, hub *ws.Hub, operatorToken string) *Server {
	return &Server{
		log:           log,
		ledger:        ledger,
		social:        social,
		publ:          publ,
		bcast:         bcast,
		feed:          feed,
		hub:           hub,
		operatorToken: operatorToken,
		now:           time.Now,
	}
}

// Router monta as rotas públicas da API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Agentes
	r.Post("/api/agents/register", s.registerAgent)
	r.Get("/api/agents", s.listAgents)
	r.Get("/api/agents/{username}", s.getAgent)
	r.Get("/api/agents/{username}/videos", s.listAgentVideos)
	r.Get("/api/leaderboard", s.leaderboard)

	// Vídeos e feed
	r.Post("/api/videos", s.requireAgent(s.postVideo))
	r.Get("/api/videos/{id}", s.getVideo)
	r.Get("/api/videos/{id}/comments", s.listComments)
	r.Post("/api/videos/{id}/like", s.requireAgent(s.likeVideo))
	r.Post("/api/videos/{id}/comment", s.requireAgent(s.commentVideo))
	r.Get("/api/feed/trending", s.trendingFeed)
	r.Get("/api/feed/latest", s.latestFeed)

	// Mercados de previsão
	r.Get("/api/predictions", s.listMarkets)
	r.Get("/api/predictions/{id}", s.getMarket)
	r.Get("/api/predictions/{id}/bets", s.listMarketBets)
	r.Post("/api/predictions", s.requireOperator(s.createMarket))
	r.Post("/api/predictions/{id}/bet", s.requireAgent(s.placeBet))
	r.Post("/api/predictions/{id}/resolve", s.requireOperator(s.resolveMarket))

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	return r
}

// requireAgent resolve a api key do header Authorization para um agente ativo
func (s *Server) requireAgent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}
		agent, err := s.social.GetAgentByAPIKey(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r.WithContext(auth.WithAgentID(r.Context(), agent.ID)))
	}
}

// requireOperator protege criação e resolução de mercados
func (s *Server) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || token != s.operatorToken {
			writeError(w, http.StatusUnauthorized, "operator token required")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return h[len("Bearer "):], true
}

// writeLedgerError mapeia a taxonomia do ledger para HTTP:
// not found -> 404, estado/entrada inválidos -> 400 com o motivo específico,
// violação de invariante -> 500 (bug, logado com alerta)
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrMarketResolved),
		errors.Is(err, market.ErrMarketExpired),
		errors.Is(err, market.ErrNotYetEligible),
		errors.Is(err, market.ErrStakeTooSmall),
		errors.Is(err, market.ErrInvalidSide):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrInvariantViolation):
		s.log.Error("ledger invariant violation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		s.log.Error("ledger failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
