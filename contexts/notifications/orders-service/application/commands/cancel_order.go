package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/domain/services"
	"courier/contexts/notifications/orders-service/ports"
)

type CancelOrderCommand struct {
	Creator string
	OrderID string
}

type CancelOrderResult struct {
	State    entities.OrderState
	Snapshot entities.OrderStatusSnapshot
}

type CancelOrderUseCase struct {
	Orders ports.OrderRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

// Execute cancels a registered order. Orders past Registered report
// ErrCancellationProhibited, unknown or foreign orders ErrOrderNotFound.
func (u CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderCommand) (CancelOrderResult, error) {
	logger := application.ResolveLogger(u.Logger)
	creator := strings.TrimSpace(cmd.Creator)
	orderID := strings.TrimSpace(cmd.OrderID)
	if creator == "" {
		return CancelOrderResult{}, domainerrors.ErrMissingCreator
	}
	if orderID == "" {
		return CancelOrderResult{}, domainerrors.ErrOrderNotFound
	}

	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}

	state, err := u.Orders.UpdateOrder(ctx, creator, orderID, func(state entities.OrderState) (entities.OrderState, bool, error) {
		next, err := services.CancelOrder(state, now)
		if err != nil {
			return state, false, err
		}
		return next, true, nil
	})
	if err != nil {
		logger.Warn("cancel order failed",
			"event", "cancel_order_failed",
			"module", application.LogModule,
			"layer", "application",
			"creator", creator,
			"order_id", orderID,
			"error", err.Error(),
		)
		return CancelOrderResult{}, err
	}

	logger.Info("order cancelled",
		"event", "order_cancelled",
		"module", application.LogModule,
		"layer", "application",
		"creator", creator,
		"order_id", orderID,
	)
	return CancelOrderResult{
		State:    state,
		Snapshot: entities.NewOrderStatusSnapshot(state),
	}, nil
}
