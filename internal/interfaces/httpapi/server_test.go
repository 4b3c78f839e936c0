package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbasis/internal/application/usecase/broadcast"
	"xbasis/internal/domain/model"
)

var fixedTS = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubPuller struct {
	gotLimit int
	env      model.PullEnvelope
}

func (p *stubPuller) Basis(ctx context.Context, limit int) model.PullEnvelope {
	p.gotLimit = limit
	return p.env
}

type stubEngine struct{}

func (stubEngine) Compute(ctx context.Context) (model.Snapshot, error) {
	return model.Snapshot{
		Timestamp: fixedTS,
		Tickers: []model.TickerSnapshot{
			{Symbol: "BTCUSDT", SpotPrice: 100, FuturesPrice: 101, Basis: 1, BasisPercent: 1, Timestamp: fixedTS},
		},
	}, nil
}

func setupRouter(p Puller, hub Broadcaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(p, hub)
	h.now = func() time.Time { return fixedTS }
	return NewRouter(h)
}

func TestHealth(t *testing.T) {
	hub := broadcast.NewHub(stubEngine{}, broadcast.Options{Clock: clockwork.NewFakeClock()})
	r := setupRouter(&stubPuller{}, hub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","timestamp":"2024-05-01T12:00:00.000Z","active_connections":0}`, w.Body.String())
}

func TestBasisEndpoint(t *testing.T) {
	testCases := []struct {
		name       string
		url        string
		env        model.PullEnvelope
		wantStatus int
		wantLimit  int
		wantBody   string
	}{
		{
			name:       "success passes limit through",
			url:        "/api/basis?limit=50",
			env:        model.NewPullEnvelope(fixedTS, []model.TickerSnapshot{{Symbol: "BTCUSDT", BasisPercent: 1, Timestamp: fixedTS}}),
			wantStatus: http.StatusOK,
			wantLimit:  50,
			wantBody:   `"success":true`,
		},
		{
			name:       "no limit means no cap",
			url:        "/api/basis",
			env:        model.NewPullEnvelope(fixedTS, nil),
			wantStatus: http.StatusOK,
			wantLimit:  0,
			wantBody:   `"data":[]`,
		},
		{
			name:       "failed cycle is still 200",
			url:        "/api/basis",
			env:        model.FailedPullEnvelope(fixedTS, errors.New("all upstream feeds failed")),
			wantStatus: http.StatusOK,
			wantBody:   `"success":false`,
		},
		{
			name:       "invalid limit",
			url:        "/api/basis?limit=abc",
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid 'limit'",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPuller{env: tc.env, gotLimit: -1}
			hub := broadcast.NewHub(stubEngine{}, broadcast.Options{Clock: clockwork.NewFakeClock()})
			r := setupRouter(p, hub)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.url, nil))

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantBody)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantLimit, p.gotLimit)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	hub := broadcast.NewHub(stubEngine{}, broadcast.Options{Clock: clockwork.NewFakeClock()})
	r := setupRouter(&stubPuller{}, hub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "xbasis_")
}

func TestWebSocketSubscription(t *testing.T) {
	hub := broadcast.NewHub(stubEngine{}, broadcast.Options{Clock: clockwork.NewFakeClock()})
	srv := httptest.NewServer(setupRouter(&stubPuller{}, hub))
	defer srv.Close()
	defer hub.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer client.Close()
	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))

	// initial snapshot arrives without waiting for a cycle
	var env model.PushEnvelope
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, model.EnvelopeInitial, env.Type)
	assert.Equal(t, 1, env.TotalCount)
	assert.Equal(t, 1, hub.Len())

	rec, err := hub.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Delivered)

	_, msg, err = client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, model.EnvelopeUpdate, env.Type)

	// client leaving deregisters it
	_ = client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = client.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
}
