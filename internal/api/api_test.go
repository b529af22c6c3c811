package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realjkeee/zenbot/internal/api/handlers"
	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/search"
	"github.com/realjkeee/zenbot/pkg/logger"
)

type fakeSource struct {
	last *search.GenerationSummary
}

func (f *fakeSource) Status() search.Status {
	return search.Status{
		RunID:      "run-1",
		State:      "evaluating",
		Generation: 2,
		Populations: []search.PopulationStatus{
			{Strategy: "macd", Size: 4, Evaluated: 1},
		},
	}
}

func (f *fakeSource) Members(strategy string) ([]search.MemberView, bool) {
	if strategy != "macd" {
		return nil, false
	}
	return []search.MemberView{{Key: "period=10", Evaluated: true, Fitness: 3}}, true
}

func (f *fakeSource) LastSummary() (*search.GenerationSummary, bool) {
	return f.last, f.last != nil
}

func newTestRouter(src *fakeSource, hub *Hub) http.Handler {
	log := logger.Nop()
	return NewRouter(Routes{
		Status: handlers.NewStatusHandler(src, log),
		Hub:    hub,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("darwin_generation 2\n"))
		}),
	}, log)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	src := &fakeSource{}
	router := newTestRouter(src, nil)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"health", "/health", http.StatusOK, `"status":"ok"`},
		{"health reports loop", "/health", http.StatusOK, `"generation":2`},
		{"populations", "/api/populations", http.StatusOK, `"state":"evaluating"`},
		{"population", "/api/populations/macd", http.StatusOK, `"key":"period=10"`},
		{"unknown population", "/api/populations/nope", http.StatusNotFound, "Unknown strategy"},
		{"no generation yet", "/api/generations/latest", http.StatusNotFound, "No generation"},
		{"metrics", "/metrics", http.StatusOK, "darwin_generation 2"},
		{"ws not mounted", "/ws", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	src.last = &search.GenerationSummary{Generation: 1, Strategies: []search.StrategySummary{{Strategy: "macd"}}}
	rec := get(t, router, "/api/generations/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary search.GenerationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Generation)
}

func TestRouter_HealthWithoutStatus(t *testing.T) {
	rec := get(t, NewRouter(Routes{}, nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"zenbot-darwin"`)
	assert.NotContains(t, rec.Body.String(), "generation")

	rec = get(t, NewRouter(Routes{}, nil), "/api/populations")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := get(t, h, "/api/populations")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestHub_StreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(newTestRouter(&fakeSource{}, hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.OnEvent(search.Event{
		Type:       search.EventGeneration,
		RunID:      "run-1",
		Generation: 1,
		Summary: &search.GenerationSummary{Strategies: []search.StrategySummary{
			{Strategy: "macd", Best: &contracts.ScoredResult{Fitness: 5}},
		}},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e search.Event
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, search.EventGeneration, e.Type)
	assert.Equal(t, "run-1", e.RunID)
	require.NotNil(t, e.Summary)
	assert.Equal(t, 5.0, e.Summary.Strategies[0].Best.Fitness)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	c := &client{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	hub.OnEvent(search.Event{Type: search.EventState})
	hub.OnEvent(search.Event{Type: search.EventState})

	assert.Equal(t, 0, hub.Clients())
	_, ok := <-c.send
	assert.True(t, ok, "queued event is still delivered")
	_, ok = <-c.send
	assert.False(t, ok, "channel closed after drop")
}
