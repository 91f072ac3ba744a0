package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aicolabsdev/aicolabs/internal/market"
	"github.com/aicolabsdev/aicolabs/internal/platform/repo"
	"github.com/aicolabsdev/aicolabs/pkg/contracts/events"
)

// fakeLedger guarda os mercados em memória delegando as regras para o engine,
// mesma semântica do repositório Postgres
type fakeLedger struct {
	minStake    int64
	markets     map[string]*market.Market
	bets        map[string][]market.Bet
	settlements map[string][]market.Settlement
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		minStake:    100,
		markets:     map[string]*market.Market{},
		bets:        map[string][]market.Bet{},
		settlements: map[string][]market.Settlement{},
	}
}

func (f *fakeLedger) Create(_ context.Context, videoID, question string, endTime time.Time) (market.Market, error) {
	m := market.Market{
		ID: "mkt-" + videoID, VideoID: videoID, Question: question,
		EndTime: endTime, State: market.StateOpen, CreatedAt: time.Now(),
	}
	f.markets[m.ID] = &m
	return m, nil
}

func (f *fakeLedger) Get(_ context.Context, id string) (market.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return market.Market{}, market.ErrMarketNotFound
	}
	return *m, nil
}

func (f *fakeLedger) List(_ context.Context) ([]market.Market, error) {
	var out []market.Market
	for _, m := range f.markets {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeLedger) ListBets(_ context.Context, marketID string) ([]market.Bet, error) {
	return f.bets[marketID], nil
}

func (f *fakeLedger) ListSettlements(_ context.Context, marketID string) ([]market.Settlement, error) {
	return f.settlements[marketID], nil
}

func (f *fakeLedger) PlaceBet(_ context.Context, marketID, agentID string, side market.Side, amount int64, now time.Time) (market.Bet, market.Market, error) {
	m, ok := f.markets[marketID]
	if !ok {
		return market.Bet{}, market.Market{}, market.ErrMarketNotFound
	}
	bet, err := market.ApplyStake(m, agentID, side, amount, now, f.minStake)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}
	f.bets[marketID] = append(f.bets[marketID], bet)
	return bet, *m, nil
}

func (f *fakeLedger) Resolve(_ context.Context, marketID string, outcome market.Side, now time.Time) (market.Market, []market.Settlement, error) {
	m, ok := f.markets[marketID]
	if !ok {
		return market.Market{}, nil, market.ErrMarketNotFound
	}
	if err := market.CheckResolvable(m, now); err != nil {
		return market.Market{}, nil, err
	}
	sets, err := market.Settle(m, f.bets[marketID], outcome, now)
	if err != nil {
		return market.Market{}, nil, err
	}
	f.settlements[marketID] = sets
	return *m, sets, nil
}

type fakeSocial struct {
	agents        map[string]repo.Agent // por api key
	trending      []repo.Video
	trendingReads int
}

func (f *fakeSocial) CreateAgent(_ context.Context, name, username, apiKey string) (repo.Agent, error) {
	for _, a := range f.agents {
		if a.Username == username {
			return repo.Agent{}, repo.ErrUsernameTaken
		}
	}
	a := repo.Agent{ID: "agent-" + username, Name: name, Username: username,
		APIKey: apiKey, ReputationScore: 100, IsActive: true, CreatedAt: time.Now()}
	f.agents[apiKey] = a
	return a, nil
}

func (f *fakeSocial) GetAgentByAPIKey(_ context.Context, apiKey string) (repo.Agent, error) {
	a, ok := f.agents[apiKey]
	if !ok {
		return repo.Agent{}, repo.ErrAgentNotFound
	}
	return a, nil
}

func (f *fakeSocial) GetAgentByUsername(_ context.Context, username string) (repo.Agent, error) {
	for _, a := range f.agents {
		if a.Username == username {
			return a, nil
		}
	}
	return repo.Agent{}, repo.ErrAgentNotFound
}

func (f *fakeSocial) ListAgents(_ context.Context, _ int) ([]repo.Agent, error) { return nil, nil }
func (f *fakeSocial) CreateVideo(_ context.Context, v repo.Video) (repo.Video, error) {
	v.ID = "vid-new"
	return v, nil
}
func (f *fakeSocial) GetVideo(_ context.Context, _ string) (repo.Video, error) {
	return repo.Video{}, repo.ErrVideoNotFound
}
func (f *fakeSocial) ListVideosByAgent(_ context.Context, _ string) ([]repo.Video, error) {
	return nil, nil
}
func (f *fakeSocial) ListLatest(_ context.Context, _ int) ([]repo.Video, error) { return nil, nil }
func (f *fakeSocial) ListTrending(_ context.Context, limit int) ([]repo.Video, error) {
	f.trendingReads++
	if len(f.trending) > limit {
		return f.trending[:limit], nil
	}
	return f.trending, nil
}
func (f *fakeSocial) LikeVideo(_ context.Context, _, _ string) error              { return nil }
func (f *fakeSocial) CommentVideo(_ context.Context, _, _, _ string) (repo.Interaction, error) {
	return repo.Interaction{}, nil
}
func (f *fakeSocial) ListComments(_ context.Context, _ string) ([]repo.Interaction, error) {
	return nil, nil
}

type fakePublisher struct {
	placed   []events.BetPlaced
	resolved []events.MarketResolved
}

func (p *fakePublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	p.placed = append(p.placed, e)
	return nil
}

func (p *fakePublisher) PublishMarketResolved(_ context.Context, e events.MarketResolved) error {
	p.resolved = append(p.resolved, e)
	return nil
}

// fakeFeed imita o cache Redis do trending: uma entrada canônica única
type fakeFeed struct {
	data        []byte
	has         bool
	invalidated int
}

func (f *fakeFeed) GetTrending(_ context.Context, dst any) (bool, error) {
	if !f.has {
		return false, nil
	}
	return true, json.Unmarshal(f.data, dst)
}

func (f *fakeFeed) SetTrending(_ context.Context, v any, _ time.Duration) error {
	b, _ := json.Marshal(v)
	f.data = b
	f.has = true
	return nil
}

func (f *fakeFeed) Invalidate(_ context.Context) error {
	f.has = false
	f.invalidated++
	return nil
}

type fakeBroadcaster struct {
	payloads [][]byte
}

func (b *fakeBroadcaster) Publish(_ context.Context, payload []byte) error {
	b.payloads = append(b.payloads, payload)
	return nil
}

const (
	testAPIKey   = "aico_sk_test"
	testOperator = "op-token"
)

func newTestServer(t *testing.T) (*Server, *fakeLedger, *fakePublisher, time.Time) {
	t.Helper()
	ledger := newFakeLedger()
	social := &fakeSocial{agents: map[string]repo.Agent{
		testAPIKey: {ID: "agent-1", Username: "bettor", APIKey: testAPIKey, IsActive: true},
	}}
	publ := &fakePublisher{}

	s := NewServer(zap.NewNop(), ledger, social, publ, nil, nil, nil, testOperator)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, ledger, publ, now
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func openTestMarket(ledger *fakeLedger, end time.Time) market.Market {
	m, _ := ledger.Create(context.Background(), "v1", "Will it go viral?", end)
	return m
}

func TestPlaceBet_OK(t *testing.T) {
	s, ledger, publ, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(7*24*time.Hour))

	rec := doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/bet", testAPIKey,
		map[string]any{"side": "yes", "amount_cents": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var bet struct {
		ID          string `json:"id"`
		Side        string `json:"side"`
		AmountCents int64  `json:"amount_cents"`
		AgentID     string `json:"agentId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.NotEmpty(t, bet.ID)
	assert.Equal(t, "yes", bet.Side)
	assert.Equal(t, int64(100), bet.AmountCents)
	assert.Equal(t, "agent-1", bet.AgentID)

	snap, _ := ledger.Get(context.Background(), m.ID)
	assert.Equal(t, int64(100), snap.TotalPoolCents)
	assert.Equal(t, int64(100), snap.YesPoolCents)

	require.Len(t, publ.placed, 1)
	assert.Equal(t, bet.ID, publ.placed[0].BetID)
}

func TestPlaceBet_Unauthorized(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(time.Hour))

	rec := doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/bet", "",
		map[string]any{"side": "yes", "amount_cents": 100})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/bet", "wrong-key",
		map[string]any{"side": "yes", "amount_cents": 100})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBet_MarketNotFound(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/nope/bet", testAPIKey,
		map[string]any{"side": "no", "amount_cents": 100})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceBet_StakeTooSmall(t *testing.T) {
	s, ledger, publ, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(time.Hour))

	rec := doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/bet", testAPIKey,
		map[string]any{"side": "yes", "amount_cents": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "stake below minimum")

	// sem mutação e sem evento
	snap, _ := ledger.Get(context.Background(), m.ID)
	assert.Equal(t, int64(0), snap.TotalPoolCents)
	assert.Empty(t, publ.placed)
}

func TestPlaceBet_Expired(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	m := openTestMarket(ledger, now.Add(-time.Minute))

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/"+m.ID+"/bet", testAPIKey,
		map[string]any{"side": "yes", "amount_cents": 200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bets closed")
}

func TestPlaceBet_InvalidSide(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	m := openTestMarket(ledger, now.Add(time.Hour))

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/"+m.ID+"/bet", testAPIKey,
		map[string]any{"side": "maybe", "amount_cents": 200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBet_FloatAmountRejected(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	m := openTestMarket(ledger, now.Add(time.Hour))

	// valor monetário em float não chega no core
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/"+m.ID+"/bet", testAPIKey,
		map[string]any{"side": "yes", "amount_cents": 100.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	snap, _ := ledger.Get(context.Background(), m.ID)
	assert.Equal(t, int64(0), snap.TotalPoolCents)
}

func TestResolve_BeforeEndTime(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	m := openTestMarket(ledger, now.Add(time.Hour))

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testOperator,
		map[string]any{"outcome": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not yet eligible")
}

func TestResolve_RequiresOperatorToken(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	m := openTestMarket(ledger, now.Add(-time.Hour))

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testAPIKey,
		map[string]any{"outcome": "yes"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolve_ReportAndExactlyOnce(t *testing.T) {
	s, ledger, publ, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(-time.Minute))

	placed := now.Add(-time.Hour)
	_, _, err := ledger.PlaceBet(context.Background(), m.ID, "agent-a", market.SideYes, 100, placed)
	require.NoError(t, err)
	_, _, err = ledger.PlaceBet(context.Background(), m.ID, "agent-b", market.SideNo, 300, placed)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testOperator,
		map[string]any{"outcome": "yes"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Market struct {
			State   string `json:"state"`
			Outcome string `json:"outcome"`
		} `json:"market"`
		Settlements []struct {
			AgentID     string `json:"agentId"`
			PayoutCents int64  `json:"payout_cents"`
		} `json:"settlements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "resolved", report.Market.State)
	assert.Equal(t, "yes", report.Market.Outcome)
	require.Len(t, report.Settlements, 2)

	payouts := map[string]int64{}
	for _, st := range report.Settlements {
		payouts[st.AgentID] = st.PayoutCents
	}
	assert.Equal(t, int64(400), payouts["agent-a"])
	assert.Equal(t, int64(0), payouts["agent-b"])

	require.Len(t, publ.resolved, 1)
	assert.Equal(t, m.ID, publ.resolved[0].MarketID)
	assert.Len(t, publ.resolved[0].Settlements, 2)

	// segunda resolução, inclusive com desfecho invertido, sempre falha
	rec = doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testOperator,
		map[string]any{"outcome": "no"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already resolved")

	snap, _ := ledger.Get(context.Background(), m.ID)
	assert.Equal(t, market.SideYes, snap.Outcome)
	assert.Len(t, publ.resolved, 1)
}

func TestGetMarket_DetailAndNotFound(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(time.Hour))
	_, _, err := ledger.PlaceBet(context.Background(), m.ID, "agent-1", market.SideNo, 250, now)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/api/predictions/"+m.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Market struct {
			TotalPoolCents int64  `json:"total_pool_cents"`
			State          string `json:"state"`
		} `json:"market"`
		Bets []struct {
			Side string `json:"side"`
		} `json:"bets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, int64(250), detail.Market.TotalPoolCents)
	assert.Equal(t, "open", detail.Market.State)
	require.Len(t, detail.Bets, 1)
	assert.Equal(t, "no", detail.Bets[0].Side)

	rec = doJSON(t, h, http.MethodGet, "/api/predictions/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMarket_Validation(t *testing.T) {
	s, _, _, now := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/predictions", testOperator,
		map[string]any{"videoId": "v1", "question": "q?", "endTime": now.Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/predictions", testOperator,
		map[string]any{"videoId": "v1", "question": "q?", "endTime": now.Add(time.Hour)})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/predictions", "not-operator",
		map[string]any{"videoId": "v1", "question": "q?", "endTime": now.Add(time.Hour)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAgent(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodPost, "/api/agents/register", "",
		map[string]any{"name": "Clipper", "username": "clipper"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Agent struct {
			Username string `json:"username"`
		} `json:"agent"`
		APIKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "clipper", out.Agent.Username)
	assert.Contains(t, out.APIKey, "aico_sk_")

	rec = doJSON(t, h, http.MethodPost, "/api/agents/register", "",
		map[string]any{"name": "Other", "username": "clipper"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username already taken")
}

func TestGetMarket_ResolvedIncludesSettlements(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	h := s.Router()
	m := openTestMarket(ledger, now.Add(-time.Minute))

	placed := now.Add(-time.Hour)
	_, _, err := ledger.PlaceBet(context.Background(), m.ID, "agent-a", market.SideYes, 100, placed)
	require.NoError(t, err)
	_, _, err = ledger.PlaceBet(context.Background(), m.ID, "agent-b", market.SideNo, 300, placed)
	require.NoError(t, err)

	// aberto: sem settlements no detalhe
	rec := doJSON(t, h, http.MethodGet, "/api/predictions/"+m.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "settlements")

	rec = doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testOperator,
		map[string]any{"outcome": "yes"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/predictions/"+m.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Market struct {
			State string `json:"state"`
		} `json:"market"`
		Settlements []struct {
			AgentID     string `json:"agentId"`
			PayoutCents int64  `json:"payout_cents"`
		} `json:"settlements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "resolved", detail.Market.State)
	require.Len(t, detail.Settlements, 2)

	payouts := map[string]int64{}
	for _, st := range detail.Settlements {
		payouts[st.AgentID] = st.PayoutCents
	}
	assert.Equal(t, int64(400), payouts["agent-a"])
	assert.Equal(t, int64(0), payouts["agent-b"])
}

func TestPlaceBetAndResolve_PublishToBroadcaster(t *testing.T) {
	s, ledger, _, now := newTestServer(t)
	bcast := &fakeBroadcaster{}
	s.bcast = bcast
	h := s.Router()
	m := openTestMarket(ledger, now.Add(-time.Minute))

	placed := now.Add(-time.Hour)
	_, _, err := ledger.PlaceBet(context.Background(), m.ID, "agent-a", market.SideYes, 100, placed)
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/predictions/"+m.ID+"/resolve", testOperator,
		map[string]any{"outcome": "yes"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, bcast.payloads, 1)
	var upd struct {
		MarketID string `json:"marketId"`
	}
	require.NoError(t, json.Unmarshal(bcast.payloads[0], &upd))
	assert.Equal(t, m.ID, upd.MarketID)
}

func TestTrendingFeed_CanonicalCacheServesAnyLimit(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	feed := &fakeFeed{}
	s.feed = feed

	social := s.social.(*fakeSocial)
	for i := 0; i < 30; i++ {
		social.trending = append(social.trending, repo.Video{
			ID: "vid-" + strconv.Itoa(i), AgentID: "agent-1", VideoURL: "u",
			EngagementScore: int64(100 - i),
		})
	}
	h := s.Router()

	// primeira leitura popula o cache com a lista completa
	rec := doJSON(t, h, http.MethodGet, "/api/feed/trending?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 5)
	assert.Equal(t, 1, social.trendingReads)

	// limit diferente é servido do mesmo cache, sem voltar ao banco
	rec = doJSON(t, h, http.MethodGet, "/api/feed/trending?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 10)
	assert.Equal(t, 1, social.trendingReads)

	// interação invalida a chave única; próxima leitura repopula
	rec = doJSON(t, h, http.MethodPost, "/api/videos/vid-0/like", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, feed.invalidated)

	rec = doJSON(t, h, http.MethodGet, "/api/feed/trending?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, social.trendingReads)
}
