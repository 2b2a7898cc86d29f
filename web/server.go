package web

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	dbt "splitledger/db/db"
	"splitledger/db/mem"
	"splitledger/db/pg"
	"splitledger/mq/gcppubsub"
	"splitledger/mq/goch"
	"splitledger/mq/mq"
	"splitledger/mq/rabbit"
	"splitledger/service"
)

// ServiceConfig selects the backends the server runs on. Dev mode swaps the
// postgres store for the in-memory one so the server runs with no
// infrastructure at all.
type ServiceConfig struct {
	IsDev  bool
	Port   string
	MqMode mq.Mode
}

func newStore(cfg ServiceConfig) (dbt.LedgerDBWrapper, error) {
	if cfg.IsDev {
		return mem.NewInMemoryLedgerDBWrapper(), nil
	}
	gormDB, err := pg.InitPostgresGORM(pg.CreateDSN())
	if err != nil {
		return nil, err
	}
	return pg.NewGORMLedgerDBWrapper(gormDB), nil
}

func newQueue(cfg ServiceConfig) (mq.LedgerMessageQueueWrapper, error) {
	switch cfg.MqMode {
	case mq.ModeRabbitMQ:
		conn := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL())
		return rabbit.NewRabbitLedgerMessageQueueWrapper(conn)
	case mq.ModeGCPPubSub:
		return gcppubsub.NewGCPLedgerMessageQueueWrapper(context.Background(), gcppubsub.GetGCPProjectID())
	default:
		return goch.NewGoChanLedgerMessageQueueWrapper(), nil
	}
}

// Serve wires the store and queue behind the ledger service and blocks on
// the gin server.
func Serve(cfg ServiceConfig) {
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		return
	}
	queue, err := newQueue(cfg)
	if err != nil {
		slog.Error("failed to initialize message queue", "error", err)
		return
	}

	r := gin.New()
	setupMiddlewares(r)

	svc := service.NewLedgerService(store, queue)
	registerRoutes(r, svc)

	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("web server stopped", "error", err)
	}
}

func registerRoutes(r *gin.Engine, svc *service.LedgerService) {
	h := &ledgerHandler{svc: svc}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api", AuthMiddleware())
	{
		api.POST("/groups", h.createGroup)
		api.GET("/groups/:groupId", h.getGroup)
		api.POST("/groups/:groupId/members", h.addGroupMember)
		api.POST("/groups/:groupId/expenses", h.createExpense)
		api.GET("/groups/:groupId/balances", h.groupBalances)
		api.GET("/groups/:groupId/simplified-debts", h.simplifiedDebts)

		api.GET("/expenses/:expenseId", h.getExpense)
		api.PUT("/expenses/:expenseId", h.updateExpense)
		api.DELETE("/expenses/:expenseId", h.deleteExpense)

		api.GET("/balances/me", h.overallBalance)

		api.POST("/settlements/record", h.recordPayment)
		api.GET("/settlements/history", h.settlementHistory)
		api.GET("/settlements/payment-link", h.paymentLink)
	}
}
