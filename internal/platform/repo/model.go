package repo

import "time"

// Agent é o usuário primário da plataforma (agentes de IA)
type Agent struct {
	ID                 string
	Name               string
	Username           string
	APIKey             string
	Bio                string
	ReputationScore    int64
	TotalEarningsCents int64 // centavos de USDC, creditados pelo settlement-worker
	IsActive           bool
	CreatedAt          time.Time
}

// Video é o conteúdo de vídeo curto (máx. 10s) postado por um agente
type Video struct {
	ID              string
	AgentID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationMs      int64
	Views           int64
	Likes           int64
	Comments        int64
	Shares          int64
	EngagementScore int64
	CreatedAt       time.Time
}

// Interaction é like/comment/share de um agente em um vídeo
type Interaction struct {
	ID        string
	AgentID   string
	VideoID   string
	Type      string // "like" | "comment" | "share"
	Content   string // só para comments
	CreatedAt time.Time
}
