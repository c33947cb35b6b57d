package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/nextfollow/followup_backend/api"
	"bitbucket.org/nextfollow/followup_backend/config"
	"bitbucket.org/nextfollow/followup_backend/middlewares"
	"bitbucket.org/nextfollow/followup_backend/models"
	"bitbucket.org/nextfollow/followup_backend/wizsync"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func corsConfigFromEnv() cors.Config {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	return corsConfig
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func registerRoutes(r *gin.Engine, client *wizsync.Client, caches *wizsync.Caches, syncer *wizsync.Syncer, ledgerCache *gocache.Cache) {
	r.POST("/api/login", api.LoginHandler())

	authed := r.Group("/api", middlewares.RequireAuth())
	authed.GET("/me", api.MeHandler())

	authed.POST("/users", api.CreateUserHandler())
	authed.GET("/users", api.ListUsersHandler())

	authed.GET("/customers", wizsync.QueryHandler(caches))
	authed.GET("/customers/export", wizsync.ExportHandler(caches))
	authed.GET("/customers/:id", wizsync.DetailHandler(client, caches))
	authed.GET("/customers/:id/ledger", wizsync.LedgerHandler(client, ledgerCache))
	authed.GET("/customers/:id/notes", api.ListCustomerNotesHandler())
	authed.POST("/sync", wizsync.SyncHandler(syncer))

	authed.POST("/notes", api.CreateNoteHandler())
	authed.DELETE("/notes/:id", api.DeleteNoteHandler())

	authed.POST("/groups", api.CreateGroupHandler())
	authed.GET("/groups", api.ListGroupsHandler())
	authed.DELETE("/groups/:id", api.DeleteGroupHandler())
	authed.POST("/groups/:id/members", api.AssignGroupMemberHandler())
	authed.DELETE("/groups/:id/members/:customerId", api.RemoveGroupMemberHandler())

	authed.POST("/tasks", api.CreateTaskHandler())
	authed.GET("/tasks", api.ListTasksHandler())
	authed.PUT("/tasks/:id/done", api.SetTaskDoneHandler())
	authed.DELETE("/tasks/:id", api.DeleteTaskHandler())
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the DB is ready so startup probes pass.
	// App endpoints return 503 until dependencies come up.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(corsConfigFromEnv()))
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	caches := wizsync.NewCaches()
	client := wizsync.NewClient(wizsync.ClientConfigFromEnv())
	syncer := wizsync.NewSyncer(client, caches)

	ledgerTTL := time.Duration(config.IntFromEnv("WIZ_LEDGER_CACHE_TTL_SECONDS", 300)) * time.Second
	ledgerCache := gocache.New(ledgerTTL, 2*ledgerTTL)

	registerRoutes(r, client, caches, syncer, ledgerCache)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Warm the report caches, then keep them fresh in the background.
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	go func() {
		if _, err := syncer.SyncAll(syncCtx); err != nil {
			config.LogWarn(logger, "server.go", "main", "initial sync", err.Error())
		}
	}()
	syncInterval := time.Duration(config.IntFromEnv("SYNC_INTERVAL_MINUTES", 15)) * time.Minute
	go syncer.RunPeriodicSync(syncCtx, syncInterval)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the background sync before draining requests.
	cancelSync()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
