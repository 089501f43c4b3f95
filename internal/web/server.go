// Package web exposes the ingestion pipeline and the chat engine over a gin
// HTTP server.
package web

import (
	"net/http"
	"net/url"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/papyr-app/papyr-api/internal/chat"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/library/log"
)

// Server routes HTTP requests to the underlying services.
type Server struct {
	docs     *ingest.Service
	chats    *chat.Service
	settings Settings
	logger   logSDK.Logger
}

// NewServer wires the HTTP layer over the two domain services.
func NewServer(docs *ingest.Service, chats *chat.Service,
	settings Settings, logger logSDK.Logger,
) *Server {
	if logger == nil {
		logger = log.Logger.Named("web")
	}
	return &Server{
		docs:     docs,
		chats:    chats,
		settings: settings.sanitized(),
		logger:   logger,
	}
}

// BuildRouter assembles the gin engine with middlewares and all routes.
func (s *Server) BuildRouter() *gin.Engine {
	engine := gin.New()
	engine.MaxMultipartMemory = s.settings.MaxUploadBytes
	engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(s.logger.Named("gin")),
		),
		s.allowCORS,
	)

	engine.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})

	api := engine.Group("/api")
	{
		api.POST("/ingest/upload", s.handleUpload)
		api.GET("/ingest/uploads", s.handleListUploads)
		api.GET("/ingest/file/:document_id", s.handleFileURL)

		api.POST("/ai/ask", s.handleAsk)
		api.GET("/ai/history/:document_id", s.handleHistory)
		api.POST("/ai/search", s.handleSearch)
	}

	return engine
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run(addr string) {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := s.BuildRouter()
	s.logger.Info("listening on http", zap.String("addr", addr))
	s.logger.Panic("http server exit", zap.Error(engine.Run(addr)))
}

func (s *Server) allowCORS(ctx *gin.Context) {
	origin := ctx.Request.Header.Get("Origin")
	allowedOrigin := ""

	if origin != "" {
		parsedOriginURL, err := url.Parse(origin)
		if err == nil {
			host := strings.ToLower(parsedOriginURL.Hostname())
			for _, allowed := range s.settings.AllowedOrigins {
				allowed = strings.ToLower(allowed)
				if host == allowed || strings.HasSuffix(host, "."+allowed) {
					allowedOrigin = origin
					break
				}
			}
		}
	}

	if allowedOrigin != "" {
		ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With, X-Profile-ID")
		ctx.Header("Access-Control-Max-Age", "86400")
		ctx.Header("Vary", "Origin")

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
	} else if origin != "" && ctx.Request.Method == http.MethodOptions {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}

	ctx.Next()
}

// profileID resolves the acting profile from the request. The header wins;
// the query parameter exists for plain browser links such as file downloads.
func profileID(ctx *gin.Context) string {
	if id := strings.TrimSpace(ctx.GetHeader("X-Profile-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(ctx.Query("profile_id"))
}
