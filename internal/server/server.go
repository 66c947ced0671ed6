package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	authdomain "github.com/smallbiznis/taskhub/internal/auth/domain"
	"github.com/smallbiznis/taskhub/internal/authorization"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/smallbiznis/taskhub/internal/observability"
	obsmiddleware "github.com/smallbiznis/taskhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taskhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taskhub/internal/observability/tracing"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	"github.com/smallbiznis/taskhub/internal/ratelimit"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"github.com/smallbiznis/taskhub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	healthTimeout     = 2 * time.Second
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	authSvc      authdomain.Service
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	tenantSvc    tenantdomain.Service
	userSvc      userdomain.Service
	projectSvc   projectdomain.Service
	taskSvc      taskdomain.Service
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	AuthSvc      authdomain.Service
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	TenantSvc    tenantdomain.Service
	UserSvc      userdomain.Service
	ProjectSvc   projectdomain.Service
	TaskSvc      taskdomain.Service
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("http.server"),
		authSvc:      p.AuthSvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		tenantSvc:    p.TenantSvc,
		userSvc:      p.UserSvc,
		projectSvc:   p.ProjectSvc,
		taskSvc:      p.TaskSvc,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.Health)

	s.registerAuthRoutes(api)
	s.registerTenantRoutes(api)
	s.registerUserRoutes(api)
	s.registerProjectRoutes(api)
	s.registerTaskRoutes(api)
	s.registerAuditRoutes(api)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) registerAuthRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")

	auth.POST("/register-tenant", s.RegisterTenant)
	auth.POST("/register", s.Register)
	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/logout", s.AuthRequired(), s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerTenantRoutes(api *gin.RouterGroup) {
	tenants := api.Group("/tenants", s.AuthRequired())

	tenants.GET("", s.authorize(authorization.ObjectTenant, authorization.ActionTenantList), s.ListTenants)
	tenants.GET("/:id", s.authorize(authorization.ObjectTenant, authorization.ActionTenantView), s.GetTenant)
	tenants.PUT("/:id", s.authorize(authorization.ObjectTenant, authorization.ActionTenantUpdate), s.UpdateTenant)
}

func (s *Server) registerUserRoutes(api *gin.RouterGroup) {
	users := api.Group("/users", s.AuthRequired())

	users.POST("", s.authorize(authorization.ObjectUser, authorization.ActionUserCreate), s.CreateUser)
	users.GET("", s.authorize(authorization.ObjectUser, authorization.ActionUserList), s.ListUsers)
	users.PUT("/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserUpdate), s.UpdateUser)
	users.DELETE("/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserDelete), s.DeleteUser)
}

func (s *Server) registerProjectRoutes(api *gin.RouterGroup) {
	projects := api.Group("/projects", s.AuthRequired())

	projects.POST("", s.authorize(authorization.ObjectProject, authorization.ActionProjectCreate), s.CreateProject)
	projects.GET("", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.ListProjects)
	projects.GET("/:id", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.GetProject)
	projects.PUT("/:id", s.authorize(authorization.ObjectProject, authorization.ActionProjectUpdate), s.UpdateProject)
	projects.DELETE("/:id", s.authorize(authorization.ObjectProject, authorization.ActionProjectDelete), s.DeleteProject)
}

func (s *Server) registerTaskRoutes(api *gin.RouterGroup) {
	tasks := api.Group("/tasks", s.AuthRequired())

	tasks.POST("", s.authorize(authorization.ObjectTask, authorization.ActionTaskCreate), s.CreateTask)
	tasks.GET("", s.authorize(authorization.ObjectTask, authorization.ActionTaskView), s.ListTasks)
	tasks.GET("/:id", s.authorize(authorization.ObjectTask, authorization.ActionTaskView), s.GetTask)
	tasks.PATCH("/:id", s.authorize(authorization.ObjectTask, authorization.ActionTaskUpdate), s.UpdateTaskStatus)
	tasks.PUT("/:id", s.authorize(authorization.ObjectTask, authorization.ActionTaskUpdate), s.UpdateTask)
	tasks.DELETE("/:id", s.authorize(authorization.ObjectTask, authorization.ActionTaskDelete), s.DeleteTask)
}

func (s *Server) registerAuditRoutes(api *gin.RouterGroup) {
	api.GET("/audit-logs", s.AuthRequired(), s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

// Health reports whether the database answers a ping.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := db.Ping(ctx, s.db); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": "disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}
