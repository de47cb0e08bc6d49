// Package server wires the HTTP surface: webhook intake, usage and
// subscription endpoints, invoices, and operational probes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lexora/internal/config"
	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	"github.com/smallbiznis/lexora/internal/payment/webhook"
	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/lexora/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      paymentdomain.Service
	ingestor        webhook.Ingestor
}

type Params struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      paymentdomain.Service
	Ingestor        webhook.Ingestor
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		ingestor:        p.Ingestor,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/webhooks/payment", s.HandlePaymentWebhook)

	v1.POST("/subscriptions", s.HandleCreateSubscription)
	v1.GET("/subscriptions/:id", s.HandleGetSubscription)
	v1.GET("/subscriptions/:id/usage", s.HandleGetAvailability)
	v1.GET("/companies/:company_id/subscription", s.HandleGetCompanySubscription)

	v1.POST("/usage", s.HandleRecordUsage)

	v1.POST("/invoices", s.HandleCreateInvoice)
	v1.GET("/invoices/:id", s.HandleGetInvoice)

	v1.GET("/payments/:payment_intent_id", s.HandleGetPayment)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
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

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)
