package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworld/internal/bus"
	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/eventlog"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/store"
)

type gatewayFixture struct {
	router *gin.Engine
	store  *store.Store
	engine *engine.Engine
}

func newFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		WorldSeed:         7,
		WorldWidth:        20,
		WorldHeight:       20,
		TickInterval:      time.Millisecond,
		WorkerCount:       2,
		DecisionTimeout:   time.Second,
		VisibilityRadius:  5,
		VisibilityMetric:  "chebyshev",
		WitnessRadius:     2,
		HungerDecay:       0.5,
		EnergyDecay:       0.3,
		HealthBleed:       5,
		RecentEventsLimit: 50,
	}

	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.InitWorldState())

	log := eventlog.New(st.DB())
	require.NoError(t, log.InitGlobalVersion())

	reg := policy.NewRegistry()
	reg.Register(policy.NewScriptedAdapter("fallback", entropy.NewSource(7)))
	eng := engine.New(cfg, st, log, cache.NewProjections(cache.NewMemoryKV(), 50),
		bus.New(), reg, entropy.NewSource(7))

	g := New(cfg, st, eng, log)
	router := gin.New()
	g.Mount(router.Group("/api/v1"))
	return &gatewayFixture{router: router, store: st, engine: eng}
}

func (f *gatewayFixture) do(t *testing.T, method, path, key string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f *gatewayFixture) register(t *testing.T, name string) (agentID, apiKey string) {
	t.Helper()
	rec, out := f.do(t, http.MethodPost, "/api/v1/agents/register", "", gin.H{
		"name":          name,
		"spawnPosition": gin.H{"x": 5, "y": 5},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return out["agentId"].(string), out["apiKey"].(string)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	assert.NotEmpty(t, agentID)
	assert.NotEmpty(t, apiKey)

	a, err := f.store.GetAgent(agentID)
	require.NoError(t, err)
	assert.Equal(t, "probe", a.Name)
	assert.Equal(t, engine.PolicyExternal, a.PolicyType)
	assert.Equal(t, 5, a.X)
	assert.Equal(t, 1<<20, a.SpawnIndex)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/agents/register", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")

	rec, out := f.do(t, http.MethodPost, "/api/v1/agents/register", "", gin.H{
		"name":          "probe",
		"spawnPosition": gin.H{"x": 99, "y": 5},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", out["error"])
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")

	rec, _ := f.do(t, http.MethodGet, "/api/v1/agents/"+agentID+"/observe", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	rec, _ = f.do(t, http.MethodGet, "/api/v1/agents/"+agentID+"/observe", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown key")

	rec, _ = f.do(t, http.MethodGet, "/api/v1/agents/other/observe", apiKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "key bound to a different agent")
}

func TestObserve(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")

	rec, out := f.do(t, http.MethodGet, "/api/v1/agents/"+agentID+"/observe", apiKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["tick"])

	obs, ok := out["observation"].(map[string]any)
	require.True(t, ok)
	self := obs["self"].(map[string]any)
	assert.Equal(t, agentID, self["id"])
}

func TestDecide(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	path := "/api/v1/agents/" + agentID + "/decide"

	rec, out := f.do(t, http.MethodPost, path, apiKey, gin.H{
		"action": "sleep",
		"params": gin.H{"duration": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(0), out["tick"])

	a, err := f.store.GetAgent(agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.SleepUntil)
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	path := "/api/v1/agents/" + agentID + "/decide"

	rec, out := f.do(t, http.MethodPost, path, apiKey, gin.H{
		"action": "sleep",
		"params": gin.H{"duration": 99},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_decision", out["error"])

	rec, out = f.do(t, http.MethodPost, path, apiKey, gin.H{
		"action": "harm",
		"params": gin.H{"targetAgentId": agentID, "intensity": "light"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot target yourself", out["message"])
}

func TestDecideRateLimitedPerTick(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	path := "/api/v1/agents/" + agentID + "/decide"
	body := gin.H{"action": "sleep", "params": gin.H{"duration": 1}}

	rec, _ := f.do(t, http.MethodPost, path, apiKey, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := f.do(t, http.MethodPost, path, apiKey, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", out["error"])
}

func TestDecideFailedActionIsStillOK(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")

	// The HTTP layer accepted and executed the decision; the in-world failure
	// rides in the body.
	rec, out := f.do(t, http.MethodPost, "/api/v1/agents/"+agentID+"/decide", apiKey, gin.H{
		"action": "consume",
		"params": gin.H{"itemType": "food"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["error"])
}

func TestDecideStorageErrorReleasesSlot(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	path := "/api/v1/agents/" + agentID + "/decide"
	body := gin.H{"action": "sleep", "params": gin.H{"duration": 1}}

	// Break a table the execution path snapshots; auth and the rate-limit
	// bookkeeping are unaffected.
	_, err := f.store.DB().Exec(`DROP TABLE resource_spawns`)
	require.NoError(t, err)

	rec, _ := f.do(t, http.MethodPost, path, apiKey, body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed attempt did not burn the per-tick slot.
	rec, out := f.do(t, http.MethodPost, path, apiKey, body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "rate_limited", out["error"])
}

func TestDeadAgentIsGone(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")
	require.NoError(t, f.store.MarkAgentDead(agentID, 0))

	rec, _ := f.do(t, http.MethodGet, "/api/v1/agents/"+agentID+"/observe", apiKey, nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/agents/"+agentID+"/decide", apiKey, gin.H{
		"action": "sleep", "params": gin.H{"duration": 1},
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDeregister(t *testing.T) {
	f := newFixture(t)
	agentID, apiKey := f.register(t, "probe")

	rec, out := f.do(t, http.MethodDelete, "/api/v1/agents/"+agentID, apiKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deregistered", out["status"])

	a, err := f.store.GetAgent(agentID)
	require.NoError(t, err)
	assert.False(t, a.Alive())

	rec, _ = f.do(t, http.MethodGet, "/api/v1/agents/"+agentID+"/observe", apiKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "key stops resolving")
}
