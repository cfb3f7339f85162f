package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/api"
	"github.com/nekogravitycat/record-console/internal/auth"
	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/console"
	"github.com/nekogravitycat/record-console/internal/filter"
	"github.com/nekogravitycat/record-console/internal/record"
	"github.com/nekogravitycat/record-console/internal/session"
	"github.com/nekogravitycat/record-console/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	Store             record.Store
	Dialect           filter.Dialect
	JWTSecret         string
	JWTTTL            time.Duration
	BcryptCost        int
	UndoMaxDepth      int
	MinPasswordLength int
	Logger            *zap.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	Sessions       *session.Registry
	ConsoleService *console.Service
	UserService    user.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Init Components
	cat := catalog.Default()
	compiler := filter.NewCompiler(cat, cfg.Dialect)
	passwordHasher := auth.NewBcryptPasswordHasher()
	if cfg.BcryptCost != 0 {
		passwordHasher = auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	sessions := session.NewRegistry(cfg.Store, cfg.UndoMaxDepth, log.Named("session"))

	// Console Module
	consoleService := console.NewService(cat, compiler, cfg.Store, log.Named("console"))
	consoleService.OnChange(user.EndSessionsOnAccountChange(sessions, log.Named("session")))

	// User Module
	userRepo := user.NewRepository(cfg.Store, compiler)
	userService := user.NewService(userRepo, passwordHasher, sessions, consoleService, cfg.MinPasswordLength, log.Named("user"))

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		UserService:    userService,
		ConsoleService: consoleService,
		Sessions:       sessions,
		JWTManager:     jwtManager,
		Logger:         log.Named("http"),
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		Sessions:       sessions,
		ConsoleService: consoleService,
		UserService:    userService,
	}
}
