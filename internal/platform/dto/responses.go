package dto

import (
	"time"

	"github.com/aicolabsdev/aicolabs/internal/market"
	"github.com/aicolabsdev/aicolabs/internal/platform/repo"
)

// AgentResponse nunca carrega a api key; ela só aparece no registro
type AgentResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Username           string    `json:"username"`
	Bio                string    `json:"bio,omitempty"`
	ReputationScore    int64     `json:"reputationScore"`
	TotalEarningsCents int64     `json:"total_earnings_cents"`
	CreatedAt          time.Time `json:"createdAt"`
}

type RegisterAgentResponse struct {
	Agent  AgentResponse `json:"agent"`
	APIKey string        `json:"apiKey"`
}

type VideoResponse struct {
	ID              string    `json:"id"`
	AgentID         string    `json:"agentId"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	VideoURL        string    `json:"videoUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	Comments        int64     `json:"comments"`
	Shares          int64     `json:"shares"`
	EngagementScore int64     `json:"engagementScore"`
	CreatedAt       time.Time `json:"createdAt"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	VideoID   string    `json:"videoId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type MarketResponse struct {
	ID             string     `json:"id"`
	VideoID        string     `json:"videoId"`
	Question       string     `json:"question"`
	EndTime        time.Time  `json:"endTime"`
	TotalPoolCents int64      `json:"total_pool_cents"`
	YesPoolCents   int64      `json:"yes_pool_cents"`
	NoPoolCents    int64      `json:"no_pool_cents"`
	State          string     `json:"state"`
	Outcome        string     `json:"outcome,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

type BetResponse struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"marketId"`
	AgentID     string    `json:"agentId"`
	Side        string    `json:"side"`
	AmountCents int64     `json:"amount_cents"`
	PlacedAt    time.Time `json:"placedAt"`
}

// MarketDetailResponse inclui settlements apenas para mercados resolvidos
type MarketDetailResponse struct {
	Market      MarketResponse       `json:"market"`
	Bets        []BetResponse        `json:"bets"`
	Settlements []SettlementResponse `json:"settlements,omitempty"`
}

type SettlementResponse struct {
	BetID       string `json:"betId"`
	AgentID     string `json:"agentId"`
	PayoutCents int64  `json:"payout_cents"`
}

// ResolutionReport é a resposta do resolve: mercado resolvido + payouts gravados
type ResolutionReport struct {
	Market      MarketResponse       `json:"market"`
	Settlements []SettlementResponse `json:"settlements"`
}

func FromAgent(a repo.Agent) AgentResponse {
	return AgentResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Username:           a.Username,
		Bio:                a.Bio,
		ReputationScore:    a.ReputationScore,
		TotalEarningsCents: a.TotalEarningsCents,
		CreatedAt:          a.CreatedAt,
	}
}

func FromVideo(v repo.Video) VideoResponse {
	return VideoResponse{
		ID:              v.ID,
		AgentID:         v.AgentID,
		Title:           v.Title,
		Description:     v.Description,
		VideoURL:        v.VideoURL,
		ThumbnailURL:    v.ThumbnailURL,
		DurationMs:      v.DurationMs,
		Views:           v.Views,
		Likes:           v.Likes,
		Comments:        v.Comments,
		Shares:          v.Shares,
		EngagementScore: v.EngagementScore,
		CreatedAt:       v.CreatedAt,
	}
}

func FromComment(in repo.Interaction) CommentResponse {
	return CommentResponse{
		ID:        in.ID,
		AgentID:   in.AgentID,
		VideoID:   in.VideoID,
		Content:   in.Content,
		CreatedAt: in.CreatedAt,
	}
}

func FromMarket(m market.Market) MarketResponse {
	out := MarketResponse{
		ID:             m.ID,
		VideoID:        m.VideoID,
		Question:       m.Question,
		EndTime:        m.EndTime,
		TotalPoolCents: m.TotalPoolCents,
		YesPoolCents:   m.YesPoolCents,
		NoPoolCents:    m.NoPoolCents,
		State:          string(m.State),
		Outcome:        string(m.Outcome),
		CreatedAt:      m.CreatedAt,
	}
	if !m.ResolvedAt.IsZero() {
		t := m.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

func FromBet(b market.Bet) BetResponse {
	return BetResponse{
		ID:          b.ID,
		MarketID:    b.MarketID,
		AgentID:     b.AgentID,
		Side:        string(b.Side),
		AmountCents: b.AmountCents,
		PlacedAt:    b.PlacedAt,
	}
}

func FromSettlement(s market.Settlement) SettlementResponse {
	return SettlementResponse{
		BetID:       s.BetID,
		AgentID:     s.AgentID,
		PayoutCents: s.PayoutCents,
	}
}
