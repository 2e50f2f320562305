package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/authorization"
	compliancedomain "github.com/rovamart/payguard/internal/compliance/domain"
	"github.com/rovamart/payguard/internal/config"
	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	"github.com/rovamart/payguard/internal/logger"
	obsmetrics "github.com/rovamart/payguard/internal/observability/metrics"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	authz          authorization.Service
	payoutSvc      payoutdomain.Service
	eligibilitySvc eligibilitydomain.Service
	complianceSvc  compliancedomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	Authz          authorization.Service
	PayoutSvc      payoutdomain.Service
	EligibilitySvc eligibilitydomain.Service
	ComplianceSvc  compliancedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("http.server"),
		authz:          p.Authz,
		payoutSvc:      p.PayoutSvc,
		eligibilitySvc: p.EligibilitySvc,
		complianceSvc:  p.ComplianceSvc,
	}

	svc.registerComplianceRoutes()

	return svc
}

func (s *Server) registerComplianceRoutes() {
	api := s.engine.Group("/api/compliance")
	api.Use(RequireActor())

	api.POST("/otp/submit",
		s.authorize(authorization.ObjectOTP, authorization.ActionOTPSubmit), s.handleSubmitOTP)
	api.POST("/otp/trigger",
		s.authorize(authorization.ObjectOTP, authorization.ActionOTPTrigger), s.handleTriggerOTP)

	api.POST("/payouts/unlock",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutUnlock), s.handleUnlock)
	api.POST("/payouts/intent",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutIntent), s.handleIntent)
	api.POST("/payouts/confirm",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutConfirm), s.handleConfirm)
	api.POST("/payouts/reject",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutReject), s.handleReject)
	api.POST("/payouts/manual-check",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutCheck), s.handleManualCheck)
	api.POST("/payouts/lock-all",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutLockAll), s.handleLockAll)

	api.POST("/photos/approve",
		s.authorize(authorization.ObjectPhoto, authorization.ActionPhotoApprove), s.handleApprovePhoto)

	api.GET("/eligibility",
		s.authorize(authorization.ObjectEligibility, authorization.ActionEligibilityView), s.handleEligibilityScan)
	api.GET("/eligibility/:order_id",
		s.authorize(authorization.ObjectEligibility, authorization.ActionEligibilityView), s.handleEligibility)

	api.GET("/orders/:order_id/actions",
		s.authorize(authorization.ObjectPayout, authorization.ActionPayoutViewActions), s.handleListActions)
}
