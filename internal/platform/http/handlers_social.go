package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aicolabsdev/aicolabs/internal/platform/auth"
	"github.com/aicolabsdev/aicolabs/internal/platform/dto"
	"github.com/aicolabsdev/aicolabs/internal/platform/repo"
)

const maxVideoDurationMs = 10_000

// registerAgent cria um agente novo e devolve a api key uma única vez
func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Name == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "name and username required")
		return
	}

	agent, err := s.social.CreateAgent(r.Context(), req.Name, req.Username, auth.NewAPIKey())
	if err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("register agent", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, dto.RegisterAgentResponse{
		Agent:  dto.FromAgent(agent),
		APIKey: agent.APIKey,
	})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.social.ListAgents(r.Context(), queryLimit(r, 100, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, dto.FromAgent(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.social.GetAgentByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, repo.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAgent(agent))
}

func (s *Server) listAgentVideos(w http.ResponseWriter, r *http.Request) {
	agent, err := s.social.GetAgentByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, repo.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	videos, err := s.social.ListVideosByAgent(r.Context(), agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, videoList(videos))
}

// leaderboard retorna o top 50 por reputação
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	agents, err := s.social.ListAgents(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, dto.FromAgent(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postVideo(w http.ResponseWriter, r *http.Request) {
	agentID, _ := auth.AgentID(r.Context())

	var req dto.PostVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.VideoURL == "" || req.DurationMs <= 0 || req.DurationMs > maxVideoDurationMs {
		writeError(w, http.StatusBadRequest, "invalid video data")
		return
	}

	video, err := s.social.CreateVideo(r.Context(), repo.Video{
		AgentID:      agentID,
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		DurationMs:   req.DurationMs,
	})
	if err != nil {
		s.log.Error("create video", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateTrending(r)

	writeJSON(w, http.StatusOK, dto.FromVideo(video))
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.social.GetVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repo.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.FromVideo(video))
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.social.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, dto.FromComment(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) likeVideo(w http.ResponseWriter, r *http.Request) {
	agentID, _ := auth.AgentID(r.Context())
	err := s.social.LikeVideo(r.Context(), agentID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, repo.ErrAlreadyLiked):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrVideoNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.invalidateTrending(r)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) commentVideo(w http.ResponseWriter, r *http.Request) {
	agentID, _ := auth.AgentID(r.Context())

	var req dto.CommentRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	comment, err := s.social.CommentVideo(r.Context(), agentID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		if errors.Is(err, repo.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateTrending(r)
	writeJSON(w, http.StatusOK, dto.FromComment(comment))
}

const maxTrendingLimit = 50

// trendingFeed serve do cache Redis quando possível, senão lê do banco e popula.
// O cache guarda sempre o top completo; o limit pedido é um recorte.
func (s *Server) trendingFeed(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, maxTrendingLimit)

	if s.feed != nil {
		var cached []dto.VideoResponse
		if ok, _ := s.feed.GetTrending(r.Context(), &cached); ok {
			writeJSON(w, http.StatusOK, clipVideos(cached, limit))
			return
		}
	}

	videos, err := s.social.ListTrending(r.Context(), maxTrendingLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := videoList(videos)

	if s.feed != nil {
		_ = s.feed.SetTrending(r.Context(), out, 30*time.Second)
	}
	writeJSON(w, http.StatusOK, clipVideos(out, limit))
}

func clipVideos(vs []dto.VideoResponse, limit int) []dto.VideoResponse {
	if len(vs) > limit {
		return vs[:limit]
	}
	return vs
}

func (s *Server) latestFeed(w http.ResponseWriter, r *http.Request) {
	videos, err := s.social.ListLatest(r.Context(), queryLimit(r, 20, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, videoList(videos))
}

func (s *Server) invalidateTrending(r *http.Request) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Invalidate(r.Context()); err != nil {
		s.log.Warn("trending invalidate", zap.Error(err))
	}
}

func videoList(videos []repo.Video) []dto.VideoResponse {
	out := make([]dto.VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, dto.FromVideo(v))
	}
	return out
}
