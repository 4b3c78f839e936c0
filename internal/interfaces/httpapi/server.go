package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
	wsconn "xbasis/internal/infrastructure/websocket"
	"xbasis/internal/metrics"
)

// Puller answers synchronous basis queries.
type Puller interface {
	Basis(ctx context.Context, limit int) model.PullEnvelope
}

// Broadcaster is the part of the hub the transport needs.
type Broadcaster interface {
	Register(ctx context.Context, sub port.Subscriber) (uuid.UUID, error)
	Deregister(id uuid.UUID)
	Len() int
}

type Handler struct {
	pull     Puller
	hub      Broadcaster
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(pull Puller, hub Broadcaster) *Handler {
	return &Handler{
		pull: pull,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			// browsers on any origin may subscribe, same as the CORS policy
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())

	r.GET("/health", h.Health)
	r.GET("/api/basis", h.Basis)
	r.GET("/ws", h.Subscribe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// NewServer 不设写超时，websocket 连接会被劫持并长期持有
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

type healthResp struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	ActiveConnections int    `json:"active_connections"`
}

func (h *Handler) Health(c *gin.Context) {
	writeJSON(c, http.StatusOK, healthResp{
		Status:            "healthy",
		Timestamp:         h.now().Format(model.TimeLayout),
		ActiveConnections: h.hub.Len(),
	})
}

// Basis computes a fresh snapshot for this request. ?limit=N caps the rows.
func (h *Handler) Basis(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			metrics.PullRequestsTotal.WithLabelValues("bad_request").Inc()
			env := model.FailedPullEnvelope(h.now(), errInvalidLimit)
			writeJSON(c, http.StatusBadRequest, env)
			return
		}
		limit = n
	}

	env := h.pull.Basis(c.Request.Context(), limit)
	// a failed cycle is still a well-formed answer
	writeJSON(c, http.StatusOK, env)
}

// Subscribe upgrades to websocket and holds the connection until the peer
// leaves or the hub closes it.
func (h *Handler) Subscribe(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := wsconn.NewConn(ws)
	ctx := c.Request.Context()

	id, err := h.hub.Register(ctx, conn)
	if err != nil {
		log.Warn().Err(err).Str("remote", conn.Remote()).Msg("subscriber rejected")
		_ = conn.Close()
		return
	}

	conn.ReadPump(ctx)
	h.hub.Deregister(id)
}

func writeJSON(c *gin.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}
