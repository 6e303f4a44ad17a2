package web

import (
	"context"
	"log"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	dbt "splitbook/db/db"
	"splitbook/db/mem"
	"splitbook/db/pg"
	"splitbook/mq/gcppubsub"
	"splitbook/mq/goch"
	"splitbook/mq/mq"
	"splitbook/mq/rabbit"
)

// ServiceConfig selects the storage and message queue backends at startup.
// Dev mode runs on the in-memory store; anything else connects to Postgres.
// DbMode overrides the dev default when set.
type ServiceConfig struct {
	IsDev  bool
	Port   string
	MqMode mq.Mode
	DbMode string // "mem" or "postgres"; empty follows IsDev
}

func newDBWrapper(cfg ServiceConfig) dbt.GroupDBWrapper {
	useMem := cfg.IsDev
	switch cfg.DbMode {
	case "mem":
		useMem = true
	case "postgres":
		useMem = false
	}
	if useMem {
		log.Println("Using in-memory database")
		return mem.NewInMemoryGroupDBWrapper()
	}
	gormDB, err := pg.InitPostgresGORM(pg.CreateDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return pg.NewGORMGroupDBWrapper(gormDB)
}

func newMQWrapper(cfg ServiceConfig) mq.GroupMessageQueueWrapper {
	switch cfg.MqMode {
	case mq.ModeRabbitMQ:
		conn := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL())
		wrapper, err := rabbit.NewRabbitGroupMessageQueueWrapper(conn)
		if err != nil {
			log.Fatalf("Failed to create RabbitMQ wrapper: %v", err)
		}
		return wrapper
	case mq.ModeGCPPubSub:
		ctx := context.Background()
		client, err := pubsub.NewClient(ctx, gcppubsub.GetGCPProjectID())
		if err != nil {
			log.Fatalf("Failed to create Pub/Sub client: %v", err)
		}
		wrapper, err := gcppubsub.NewGCPGroupMessageQueueWrapper(ctx, client)
		if err != nil {
			log.Fatalf("Failed to create Pub/Sub wrapper: %v", err)
		}
		return wrapper
	default:
		return goch.NewGoChanGroupMessageQueueWrapper()
	}
}

func registerRoutes(r *gin.Engine, h *GroupHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/groups", h.CreateGroup)
	r.GET("/groups/:id", h.GetGroup)
	r.PUT("/groups/:id", h.UpdateGroup)
	r.DELETE("/groups/:id", h.DeleteGroup)
	r.POST("/invites/:code/join", h.JoinGroupByInviteCode)

	r.GET("/groups/:id/members", h.ListMembers)
	r.POST("/groups/:id/members", h.AddMember)
	r.DELETE("/groups/:id/members/:userId", h.RemoveMember)

	r.POST("/groups/:id/bills", h.CreateBill)
	r.GET("/groups/:id/bills", h.ListBills)
	r.GET("/groups/:id/bills/:billId", h.GetBill)
	r.PUT("/groups/:id/bills/:billId", h.UpdateBill)
	r.DELETE("/groups/:id/bills/:billId", h.DeleteBill)

	r.POST("/groups/:id/payments", h.CreatePayment)
	r.GET("/groups/:id/payments", h.ListPayments)

	r.GET("/groups/:id/balances", h.GetBalances)
	r.GET("/groups/:id/settle-plan", h.GetSettlePlan)
	r.POST("/groups/:id/settle-plan/apply", h.ApplySettlePlan)
	r.GET("/users/:id/focus", h.GetUserFocus)

	r.GET("/ws/groups/:id", h.WatchGroup)
}

func Serve(cfg ServiceConfig) {
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	dbWrapper := newDBWrapper(cfg)
	mqWrapper := newMQWrapper(cfg)

	r := gin.New()
	setupMiddlewares(r, dbWrapper)
	registerRoutes(r, NewGroupHandler(dbWrapper, mqWrapper))

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
