package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/utilitybilling/internal/config"
	dunningdomain "github.com/smallbiznis/utilitybilling/internal/dunning/domain"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/smallbiznis/utilitybilling/internal/invoice/render"
	"github.com/smallbiznis/utilitybilling/internal/observability"
	obslogger "github.com/smallbiznis/utilitybilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/utilitybilling/internal/observability/tracing"
	"github.com/smallbiznis/utilitybilling/internal/ratelimit"
	"github.com/smallbiznis/utilitybilling/internal/recharge"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine      *gin.Engine
	trackingSvc trackingdomain.Service
	invoiceSvc  invoicedomain.Service
	dunningSvc  dunningdomain.Service
	rechargeSvc *recharge.Service
	renderer    render.Renderer
	limiter     *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	TrackingSvc trackingdomain.Service
	InvoiceSvc  invoicedomain.Service
	DunningSvc  dunningdomain.Service
	RechargeSvc *recharge.Service
	Renderer    render.Renderer
	Limiter     *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		trackingSvc: p.TrackingSvc,
		invoiceSvc:  p.InvoiceSvc,
		dunningSvc:  p.DunningSvc,
		rechargeSvc: p.RechargeSvc,
		renderer:    p.Renderer,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Postpaid trackings --------
	postpaidTrackings := v1.Group("/postpaid/trackings")
	postpaidTrackings.POST("", s.IngestRateLimit(), s.CreatePostpaidTrackings)
	s.registerTrackingReads(postpaidTrackings, trackingdomain.TrackingTypePostpaid)

	// -------- Prepaid trackings --------
	prepaidTrackings := v1.Group("/prepaid/trackings")
	prepaidTrackings.POST("", s.IngestRateLimit(), s.CreatePrepaidTrackings)
	s.registerTrackingReads(prepaidTrackings, trackingdomain.TrackingTypePrepaid)

	// -------- Invoices --------
	postpaidInvoices := v1.Group("/postpaid/invoices")
	postpaidInvoices.POST("", s.IngestRateLimit(), s.CreatePostpaidInvoices)
	postpaidInvoices.POST("/:number/dunning", s.AdvanceDunning)
	s.registerInvoiceReads(postpaidInvoices, invoicedomain.InvoiceTypePostpaid)

	prepaidInvoices := v1.Group("/prepaid/invoices")
	prepaidInvoices.POST("", s.IngestRateLimit(), s.CreatePrepaidInvoices)
	s.registerInvoiceReads(prepaidInvoices, invoicedomain.InvoiceTypePrepaid)
}

func (s *Server) registerTrackingReads(g *gin.RouterGroup, trackingType trackingdomain.TrackingType) {
	g.GET("/:number", s.GetTracking(trackingType))
	g.GET("/contract/:contract", s.ListTrackingsByContract(trackingType))
	g.GET("/contract/:contract/last", s.GetLastTrackingByContract(trackingType))
	g.DELETE("/:number", s.DeleteTracking(trackingType))
}

func (s *Server) registerInvoiceReads(g *gin.RouterGroup, invoiceType invoicedomain.InvoiceType) {
	g.GET("/:number", s.GetInvoice(invoiceType))
	g.GET("/:number/pdf", s.GetInvoicePDF(invoiceType))
	g.GET("/contract/:contract", s.ListInvoicesByContract(invoiceType))
	g.GET("/contract/:contract/last", s.GetLastInvoiceByContract(invoiceType))
	g.DELETE("/:number", s.DeleteInvoice(invoiceType))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
