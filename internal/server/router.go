package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fexdroid/gamelaunchd/internal/metrics"
	"github.com/fexdroid/gamelaunchd/internal/pool"
)

// Router exposes the launcher's observable state to the UI collaborator.
// Endpoints (all JSON, read-only except terminate/kill):
//
//	GET  {basePath}/games/active
//	GET  {basePath}/history
//	GET  {basePath}/logs
//	POST {basePath}/games/:id/terminate
//	POST {basePath}/games/:id/kill
//	GET  {basePath}/healthz
//	GET  /metrics
type Router struct {
	pool     *pool.Pool
	basePath string
}

// NewRouter constructs a Router with a configurable basePath, e.g. "/api".
func NewRouter(p *pool.Pool, basePath string) *Router {
	return &Router{pool: p, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/games/active", r.handleActive)
	group.GET("/history", r.handleHistory)
	group.GET("/logs", r.handleLogs)
	group.POST("/games/:id/terminate", r.handleTerminate)
	group.POST("/games/:id/kill", r.handleKill)
	group.GET("/healthz", r.handleHealthz)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// The listener is bound synchronously so an unusable addr fails here, not
// in a background goroutine.
func NewServer(addr, basePath string, p *pool.Pool) (*http.Server, error) {
	r := NewRouter(p, basePath)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.Serve(ln) }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleActive(c *gin.Context) {
	c.JSON(http.StatusOK, r.pool.Active())
}

func (r *Router) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, r.pool.History())
}

func (r *Router) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, r.pool.Logs())
}

func (r *Router) handleTerminate(c *gin.Context) {
	id := c.Param("id")
	if !r.pool.Terminate(id) {
		c.JSON(http.StatusNotFound, errorResp{Error: "no active game with id " + id})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleKill(c *gin.Context) {
	id := c.Param("id")
	if !r.pool.Kill(id) {
		c.JSON(http.StatusNotFound, errorResp{Error: "no active game with id " + id})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
}

func sanitizeBase(basePath string) string {
	bp := strings.TrimSpace(basePath)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimSuffix(bp, "/")
}
