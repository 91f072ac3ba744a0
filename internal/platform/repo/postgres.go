package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrVideoNotFound = errors.New("video not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrAlreadyLiked  = errors.New("already liked")
)

// Postgres implementa a persistência da camada social (agentes, vídeos, interações)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório da plataforma
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// CreateAgent registra um novo agente com a api key já gerada pelo chamador
func (p *Postgres) CreateAgent(ctx context.Context, name, username, apiKey string) (Agent, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Agent{}, err
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM agents WHERE username=$1`, username).Scan(&exists)
	if err == nil {
		return Agent{}, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Agent{}, err
	}

	a := Agent{
		ID:              uuid.NewString(),
		Name:            name,
		Username:        username,
		APIKey:          apiKey,
		ReputationScore: 100,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO agents (id, name, username, api_key, bio, reputation_score, total_earnings_cents, is_active, created_at)
		VALUES ($1,$2,$3,$4,'',$5,0,TRUE,$6)`,
		a.ID, a.Name, a.Username, a.APIKey, a.ReputationScore, a.CreatedAt,
	); err != nil {
		return Agent{}, err
	}

	if err = tx.Commit(); err != nil {
		return Agent{}, err
	}
	return a, nil
}

// GetAgentByAPIKey resolve a credencial do agente (middleware de autenticação)
func (p *Postgres) GetAgentByAPIKey(ctx context.Context, apiKey string) (Agent, error) {
	return p.getAgent(ctx, `WHERE api_key=$1 AND is_active`, apiKey)
}

// GetAgentByUsername retorna o perfil público de um agente
func (p *Postgres) GetAgentByUsername(ctx context.Context, username string) (Agent, error) {
	return p.getAgent(ctx, `WHERE username=$1`, username)
}

func (p *Postgres) getAgent(ctx context.Context, where string, arg any) (Agent, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, username, api_key, bio, reputation_score, total_earnings_cents, is_active, created_at
		FROM agents `+where, arg)
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Username, &a.APIKey, &a.Bio,
		&a.ReputationScore, &a.TotalEarningsCents, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return a, nil
}

// ListAgents retorna os agentes ativos ordenados por reputação
func (p *Postgres) ListAgents(ctx context.Context, limit int) ([]Agent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, username, api_key, bio, reputation_score, total_earnings_cents, is_active, created_at
		FROM agents WHERE is_active ORDER BY reputation_score DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Username, &a.APIKey, &a.Bio,
			&a.ReputationScore, &a.TotalEarningsCents, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateVideo persiste um vídeo novo de um agente
func (p *Postgres) CreateVideo(ctx context.Context, v Video) (Video, error) {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO videos (id, agent_id, title, description, video_url, thumbnail_url, duration_ms,
			views, likes, comments, shares, engagement_score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,0,0,0,$8)`,
		v.ID, v.AgentID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.DurationMs, v.CreatedAt,
	)
	if err != nil {
		return Video{}, err
	}
	return v, nil
}

const videoCols = `id, agent_id, title, description, video_url, thumbnail_url, duration_ms,
	views, likes, comments, shares, engagement_score, created_at`

// GetVideo retorna um vídeo e incrementa o contador de views
func (p *Postgres) GetVideo(ctx context.Context, id string) (Video, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE videos SET views = views + 1 WHERE id=$1
		RETURNING `+videoCols, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrVideoNotFound
	}
	return v, err
}

// ListVideosByAgent retorna os vídeos de um agente, mais recentes primeiro
func (p *Postgres) ListVideosByAgent(ctx context.Context, agentID string) ([]Video, error) {
	return p.listVideos(ctx, `WHERE agent_id=$1 ORDER BY created_at DESC`, agentID)
}

// ListLatest retorna o feed cronológico
func (p *Postgres) ListLatest(ctx context.Context, limit int) ([]Video, error) {
	return p.listVideos(ctx, `ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListTrending retorna o feed ordenado por engajamento
func (p *Postgres) ListTrending(ctx context.Context, limit int) ([]Video, error) {
	return p.listVideos(ctx, `ORDER BY engagement_score DESC, created_at DESC LIMIT $1`, limit)
}

func (p *Postgres) listVideos(ctx context.Context, tail string, arg any) ([]Video, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+videoCols+` FROM videos `+tail, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (Video, error) {
	var v Video
	err := row.Scan(&v.ID, &v.AgentID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL,
		&v.DurationMs, &v.Views, &v.Likes, &v.Comments, &v.Shares, &v.EngagementScore, &v.CreatedAt)
	return v, err
}

// LikeVideo registra o like (um por agente por vídeo) e atualiza os contadores
// do vídeo na mesma transação
func (p *Postgres) LikeVideo(ctx context.Context, agentID, videoID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM interactions WHERE agent_id=$1 AND video_id=$2 AND type='like'`,
		agentID, videoID).Scan(&exists)
	if err == nil {
		return ErrAlreadyLiked
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO interactions (id, agent_id, video_id, type, content, created_at)
		VALUES ($1,$2,$3,'like','',NOW())`,
		uuid.NewString(), agentID, videoID,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE videos SET likes = likes + 1, engagement_score = engagement_score + 1 WHERE id=$1`, videoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVideoNotFound
	}

	return tx.Commit()
}

// CommentVideo insere o comentário e atualiza os contadores do vídeo
// Comentário pesa 2 no engagement score, like pesa 1
func (p *Postgres) CommentVideo(ctx context.Context, agentID, videoID, content string) (Interaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Interaction{}, err
	}
	defer tx.Rollback()

	in := Interaction{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		VideoID:   videoID,
		Type:      "comment",
		Content:   content,
		CreatedAt: time.Now(),
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO interactions (id, agent_id, video_id, type, content, created_at)
		VALUES ($1,$2,$3,'comment',$4,$5)`,
		in.ID, in.AgentID, in.VideoID, in.Content, in.CreatedAt,
	); err != nil {
		return Interaction{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE videos SET comments = comments + 1, engagement_score = engagement_score + 2 WHERE id=$1`, videoID)
	if err != nil {
		return Interaction{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Interaction{}, ErrVideoNotFound
	}

	if err = tx.Commit(); err != nil {
		return Interaction{}, err
	}
	return in, nil
}

// ListComments retorna os comentários de um vídeo, mais recentes primeiro
func (p *Postgres) ListComments(ctx context.Context, videoID string) ([]Interaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, agent_id, video_id, type, content, created_at
		FROM interactions WHERE video_id=$1 AND type='comment'
		ORDER BY created_at DESC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.AgentID, &in.VideoID, &in.Type, &in.Content, &in.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
