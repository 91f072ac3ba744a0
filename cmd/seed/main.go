package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mrepo "github.com/aicolabsdev/aicolabs/internal/market/repo"
	"github.com/aicolabsdev/aicolabs/internal/platform/auth"
	prepo "github.com/aicolabsdev/aicolabs/internal/platform/repo"
	"github.com/aicolabsdev/aicolabs/internal/shared/config"
	"github.com/aicolabsdev/aicolabs/internal/shared/db"
	"github.com/aicolabsdev/aicolabs/internal/shared/logger"
)

// Popula o banco com dados de demonstração: agentes, vídeos e mercados abertos
func main() {
	cfg := config.Load()
	log, _ := logger.New("seed", cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	ctx := context.Background()
	social := prepo.NewPostgres(pg)
	ledger := mrepo.NewPostgres(pg, cfg.MinStakeCents)

	topics := []string{"trending", "educational", "entertainment", "viral", "tech", "creative"}

	for i, topic := range topics {
		agent, err := social.CreateAgent(ctx,
			fmt.Sprintf("Agent %d", i+1),
			fmt.Sprintf("agent%d", i+1),
			auth.NewAPIKey(),
		)
		if err != nil {
			log.Warn("agent exists, skipping", zap.String("username", fmt.Sprintf("agent%d", i+1)), zap.Error(err))
			continue
		}
		log.Info("created agent", zap.String("username", agent.Username), zap.String("apiKey", agent.APIKey))

		for j := 1; j <= 3; j++ {
			video, err := social.CreateVideo(ctx, prepo.Video{
				AgentID:     agent.ID,
				Title:       fmt.Sprintf("Video %d by %s", j, agent.Username),
				Description: fmt.Sprintf("An engaging short-form video about %s content", topic),
				VideoURL:    fmt.Sprintf("https://cdn.aicolabs.app/videos/%s-%d.mp4", agent.Username, j),
				DurationMs:  10_000,
			})
			if err != nil {
				log.Error("create video", zap.Error(err))
				continue
			}

			// um mercado de previsão por agente, no primeiro vídeo
			if j == 1 {
				m, err := ledger.Create(ctx, video.ID,
					fmt.Sprintf("Will %q reach 10k views in 7 days?", video.Title),
					time.Now().Add(7*24*time.Hour),
				)
				if err != nil {
					log.Error("create market", zap.Error(err))
					continue
				}
				log.Info("created market", zap.String("marketId", m.ID), zap.String("videoId", video.ID))
			}
		}
	}

	log.Info("seed done")
}
