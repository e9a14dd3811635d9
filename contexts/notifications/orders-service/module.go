package ordersservice

import (
	"log/slog"
	"time"

	httpadapter "courier/contexts/notifications/orders-service/adapters/http"
	"courier/contexts/notifications/orders-service/adapters/memory"
	"courier/contexts/notifications/orders-service/application/commands"
	"courier/contexts/notifications/orders-service/application/queries"
	"courier/contexts/notifications/orders-service/application/workers"
	"courier/contexts/notifications/orders-service/ports"
)

type Module struct {
	Handler        httpadapter.Handler
	DispatchRelay  workers.DispatchRelay
	ResultConsumer workers.DeliveryResultConsumer
	Store          *memory.Store
}

type Dependencies struct {
	Orders            ports.OrderRepository
	Feed              ports.StatusFeedRepository
	Dedup             ports.EventDedupStore
	Clock             ports.Clock
	IDGenerator       ports.IDGenerator
	Publisher         ports.BatchPublisher
	Subscriber        ports.EventSubscriber
	Topics            workers.Topics
	DispatchBatchSize int
	ConsumerGroup     string
	DedupTTL          time.Duration
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createOrderChain := commands.CreateOrderChainUseCase{
		Orders:      deps.Orders,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	cancelOrder := commands.CancelOrderUseCase{
		Orders: deps.Orders,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	applyDeliveryResult := commands.ApplyDeliveryResultUseCase{
		Orders: deps.Orders,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}

	getShipment := queries.GetShipmentUseCase{
		Orders: deps.Orders,
		Logger: deps.Logger,
	}
	readStatusFeed := queries.ReadStatusFeedUseCase{
		Feed:   deps.Feed,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateOrderChain: createOrderChain,
			CancelOrder:      cancelOrder,
			GetShipment:      getShipment,
			ReadStatusFeed:   readStatusFeed,
			Logger:           deps.Logger,
		},
		DispatchRelay: workers.DispatchRelay{
			Orders:    deps.Orders,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topics:    deps.Topics,
			BatchSize: deps.DispatchBatchSize,
			Logger:    deps.Logger,
		},
		ResultConsumer: workers.DeliveryResultConsumer{
			Subscriber:    deps.Subscriber,
			Results:       applyDeliveryResult,
			Dedup:         deps.Dedup,
			Clock:         deps.Clock,
			ConsumerGroup: deps.ConsumerGroup,
			DedupTTL:      deps.DedupTTL,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one in-memory store. Workers still
// need a publisher and subscriber from the caller.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	module := NewModule(Dependencies{
		Orders:      store,
		Feed:        store,
		Dedup:       store,
		Clock:       store,
		IDGenerator: store,
		DedupTTL:    7 * 24 * time.Hour,
		Logger:      logger,
	})
	module.Store = store
	return module
}
