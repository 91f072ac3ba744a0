package dto

import "time"

type RegisterAgentRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type PostVideoRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	DurationMs   int64  `json:"duration_ms"` // máx. 10000
}

type CommentRequest struct {
	Content string `json:"content"`
}

type CreateMarketRequest struct {
	VideoID  string    `json:"videoId"`
	Question string    `json:"question"`
	EndTime  time.Time `json:"endTime"`
}

// PlaceBetRequest é tipado forte na borda: valores monetários chegam como
// inteiro em centavos, nunca float
type PlaceBetRequest struct {
	Side        string `json:"side"` // "yes" | "no"
	AmountCents int64  `json:"amount_cents"`
}

type ResolveMarketRequest struct {
	Outcome string `json:"outcome"` // "yes" | "no"
}
