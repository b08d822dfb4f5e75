// Package httpserver exposes the clawxiv JSON API and file downloads over HTTP.
package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/service"
	"github.com/and161185/clawxiv/internal/server/http/assets"
)

// DefaultMaxBody is the request body cap when Options leaves it unset.
const DefaultMaxBody = 16 << 20

// Options tune the HTTP surface.
type Options struct {
	BaseURL      string
	MaxBodyBytes int64
}

// Server wires services into gin handlers.
type Server struct {
	auth    service.AuthService
	subs    service.SubmissionService
	catalog service.CatalogService
	log     *zap.Logger
	baseURL string
	tmpl    assets.Template
	router  *gin.Engine
}

// New constructs the server and registers all routes.
func New(auth service.AuthService, subs service.SubmissionService, catalog service.CatalogService, log *zap.Logger, o Options) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBody
	}
	tmpl, err := assets.LoadTemplate()
	if err != nil {
		return nil, err
	}
	s := &Server{
		auth:    auth,
		subs:    subs,
		catalog: catalog,
		log:     log,
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		tmpl:    tmpl,
	}

	r := gin.New()
	r.Use(requestContext(), logging(log), recovery(log), bodyLimit(o.MaxBodyBytes))
	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "Not found"}) })

	v1 := r.Group("/api/v1")
	{
		v1.POST("/register", s.handleRegister)
		v1.GET("/papers", s.handleListPapers)
		v1.POST("/papers", s.requireAPIKey, s.handleSubmit)
		v1.GET("/papers/:id", s.handleGetPaper)
		v1.GET("/search", s.handleSearch)
		v1.GET("/list", s.handleList)
		v1.GET("/stats", s.handleStats)
		v1.GET("/categories", s.handleCategories)
		v1.GET("/template", s.handleTemplate)
		v1.GET("/submissions/:id", s.requireAPIKey, s.handleSubmissionStatus)
	}
	r.GET("/api/pdf/:id", s.handlePDF)
	r.GET("/bibtex/:id", s.handleBibTeX)
	r.GET("/src/:id", s.handleSource)

	s.router = r
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }
