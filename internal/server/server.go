package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentledger/internal/config"
	contractdomain "github.com/smallbiznis/rentledger/internal/contract/domain"
	correctiondomain "github.com/smallbiznis/rentledger/internal/correction/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	payoutdomain "github.com/smallbiznis/rentledger/internal/payout/domain"
	"github.com/smallbiznis/rentledger/internal/settlement"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(NewRegistry),
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// NewRegistry is the process-wide metrics registry all components write to.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

func NewEngine(registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	genID  *snowflake.Node

	contractSvc   contractdomain.Service
	invoiceSvc    invoicedomain.Service
	correctionSvc correctiondomain.Service
	paymentSvc    paymentdomain.Service
	payoutSvc     payoutdomain.Service
	settlementSvc *settlement.Service
}

type ServerParams struct {
	fx.In

	Engine *gin.Engine
	Config config.Config
	Log    *zap.Logger
	GenID  *snowflake.Node

	ContractSvc   contractdomain.Service
	InvoiceSvc    invoicedomain.Service
	CorrectionSvc correctiondomain.Service
	PaymentSvc    paymentdomain.Service
	PayoutSvc     payoutdomain.Service
	SettlementSvc *settlement.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine: p.Engine,
		cfg:    p.Config,
		log:    p.Log.Named("server"),
		genID:  p.GenID,

		contractSvc:   p.ContractSvc,
		invoiceSvc:    p.InvoiceSvc,
		correctionSvc: p.CorrectionSvc,
		paymentSvc:    p.PaymentSvc,
		payoutSvc:     p.PayoutSvc,
		settlementSvc: p.SettlementSvc,
	}
}

func registerRoutes(s *Server) {
	api := s.engine.Group("/v1")

	api.POST("/contracts", s.CreateContract)
	api.GET("/contracts/:id", s.GetContract)
	api.GET("/contracts", s.ListContracts)
	api.POST("/contracts/:id/close", s.CloseContract)
	api.GET("/contracts/:id/settlement", s.GetSettlementState)
	api.POST("/contracts/:id/settlement/evaluate", s.EvaluateSettlement)

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoice)
	api.GET("/contracts/:id/invoices", s.ListContractInvoices)
	api.POST("/invoices/:id/credit", s.CreditInvoice)
	api.POST("/invoices/:id/lost", s.MarkInvoiceLost)

	api.POST("/corrections", s.CreateCorrection)
	api.GET("/corrections/:id", s.GetCorrection)
	api.PATCH("/corrections/:id", s.UpdateCorrection)
	api.POST("/corrections/:id/cancel", s.CancelCorrection)
	api.GET("/contracts/:id/corrections", s.ListContractCorrections)

	api.POST("/payments", s.RecordPayment)
	api.POST("/refunds", s.CreateRefund)
	api.POST("/refunds/:id/complete", s.CompleteRefund)
	api.POST("/refunds/:id/fail", s.FailRefund)
	api.GET("/contracts/:id/payments", s.ListContractPayments)

	api.GET("/payouts/:id", s.GetPayout)
	api.GET("/contracts/:id/payouts", s.ListContractPayouts)
	api.POST("/payouts/:id/paid", s.MarkPayoutPaid)
	api.POST("/payouts/:id/failed", s.MarkPayoutFailed)
}

func parseID(c *gin.Context, name string) (snowflake.ID, error) {
	raw := c.Param(name)
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}
