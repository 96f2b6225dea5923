package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/prompt-comb/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/posts/fetch", handler.FetchPost)
			api.POST("/posts/markdown", handler.StoreMarkdown)
			api.GET("/posts/:id", handler.GetPost)
			api.POST("/posts/:id/snippets", handler.ProcessSnippets)
			api.POST("/posts/:id/prompt", handler.GeneratePrompt)

			api.GET("/settings", handler.GetSettings)
			api.PUT("/settings", handler.UpdateSettings)
			api.POST("/settings/validate-template", handler.ValidateTemplate)

			api.POST("/feeds/import", handler.ImportFeed)
			api.POST("/session/verify", handler.VerifySession)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Warn("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
		}

		if apiAccessKey != "" {
			endpoints["fetch_post"] = "/api/posts/fetch (POST)"
			endpoints["store_markdown"] = "/api/posts/markdown (POST)"
			endpoints["post"] = "/api/posts/<id>"
			endpoints["process_snippets"] = "/api/posts/<id>/snippets (POST)"
			endpoints["generate_prompt"] = "/api/posts/<id>/prompt (POST)"
			endpoints["settings"] = "/api/settings (GET, PUT)"
			endpoints["validate_template"] = "/api/settings/validate-template (POST)"
			endpoints["import_feed"] = "/api/feeds/import (POST)"
			endpoints["verify_session"] = "/api/session/verify (POST)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Prompt Comb",
			"version":     cfg.GetVersion(),
			"description": "Turns blog posts and their GitHub code snippets into ready-to-use prompts",
			"endpoints":   endpoints,
			"api_status": map[string]any{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"data": gin.H{
					"message": "API key required. Provide it in the X-API-Key header or Authorization: Bearer <key>",
				},
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"data": gin.H{
					"message": "Security check failed.",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
