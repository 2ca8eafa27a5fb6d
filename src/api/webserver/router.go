package webserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/logging"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config    config.Config
	Submitter Submitter
	Store     *data.ReportStore
	Conn      *data.ConnManager
	Cache     *data.Cache
	Logger    *logging.Logger
	Version   string
}

// Server is the Hermes HTTP handler.
type Server struct {
	engine   *gin.Engine
	limiters []*RateLimiter
}

func New(d Deps) *Server {
	log := logging.OrNop(d.Logger)
	r := gin.New()
	s := &Server{engine: r}

	r.Use(recovery(log), requestLogger(log), securityHeaders())
	s.attachRoutes(d, log)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.engine.ServeHTTP(w, req)
}

// Close stops the rate limiter janitors.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Close()
	}
}

func (s *Server) attachRoutes(d Deps, log *logging.Logger) {
	r := s.engine
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{d.Config.HTTP.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	global := NewRateLimiter(d.Config.HTTP.RateLimitGlobal, time.Minute, "Too many requests, please try again later")
	verify := NewRateLimiter(d.Config.HTTP.RateLimitVerify, time.Minute, "Too many verification requests, please slow down")
	s.limiters = append(s.limiters, global, verify)

	verifyH := NewVerify(d.Submitter, log)
	reportsH := NewReports(d.Store, d.Cache, log)

	api := r.Group("/api")
	api.Use(RateLimitMiddleware(global))
	{
		api.POST("/verify", RateLimitMiddleware(verify), verifyH.Create)
		api.GET("/dashboard", reportsH.Dashboard)
		api.GET("/trending", reportsH.Trending)
		api.POST("/upvote", reportsH.Upvote)
		api.GET("/export", reportsH.Export)
		api.GET("/clusters/:id", reportsH.Cluster)
	}

	r.GET("/health", health(d.Conn, d.Version))
	r.NoRoute(notFound(d.Config.HTTP.StaticDir))
}

func health(conn *data.ConnManager, version string) gin.HandlerFunc {
	if version == "" {
		version = "1.0.0"
	}
	return func(c *gin.Context) {
		db := "unavailable"
		if conn != nil && conn.Current() != nil {
			db = "connected"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"service":   "Hermes API",
			"version":   version,
			"database":  db,
		})
	}
}

// notFound answers unknown API paths with JSON and, when staticDir is set,
// serves the single page app for everything else.
func notFound(staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if staticDir == "" || strings.HasPrefix(p, "/api/") || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		file := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+p)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(filepath.Join(staticDir, "index.html"))
	}
}
