package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/auth"
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	consoleHttp "github.com/nekogravitycat/record-console/internal/console/http"
	"github.com/nekogravitycat/record-console/internal/session"
	"github.com/nekogravitycat/record-console/internal/user"
	userHttp "github.com/nekogravitycat/record-console/internal/user/http"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	UserService    user.Service
	ConsoleService *console.Service
	Sessions       *session.Registry
	JWTManager     *auth.JWTManager
	Logger         *zap.Logger
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(log), Recovery(log))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg.IsProduction, cfg.ProdOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// authMiddleware: Validates the JWT and resolves the live session it names.
	authMiddleware := auth.AuthRequired(cfg.JWTManager, cfg.Sessions)

	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	catalogHandler := consoleHttp.NewCatalogHandler(cfg.ConsoleService.Catalog())

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware)
		consoleHttp.RegisterCatalogRoutes(v1, catalogHandler, authMiddleware)

		for _, family := range cfg.ConsoleService.Catalog().Families() {
			var create gin.HandlerFunc
			if family == catalog.Users {
				create = userHandler.CreateAccount
			}
			consoleHttp.RegisterRoutes(v1, consoleHttp.NewHandler(cfg.ConsoleService, family), authMiddleware, create)
		}
	}

	return r
}

func allowedOrigins(isProduction bool, prodOrigins string) []string {
	if !isProduction {
		return []string{"http://localhost:3000", "http://localhost:8081"}
	}
	var out []string
	for _, o := range strings.Split(prodOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		// cors.New panics on an empty origin list
		out = []string{"https://localhost"}
	}
	return out
}
