package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/domain/services"
	"courier/contexts/notifications/orders-service/ports"
)

type ApplyDeliveryResultCommand struct {
	OrderID          string
	Channel          entities.Channel
	Destination      string
	GatewayReference string
	Status           entities.ProcessingLifecycle
}

type ApplyDeliveryResultResult struct {
	State   entities.OrderState
	Applied bool
}

type ApplyDeliveryResultUseCase struct {
	Orders ports.OrderRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

// Execute applies one sender or pipeline outcome. Order-level statuses drive
// the order state machine; channel statuses update a delivery row.
func (u ApplyDeliveryResultUseCase) Execute(ctx context.Context, cmd ApplyDeliveryResultCommand) (ApplyDeliveryResultResult, error) {
	logger := application.ResolveLogger(u.Logger)
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return ApplyDeliveryResultResult{}, fmt.Errorf("%w: order id is required", domainerrors.ErrMalformedDeliveryResult)
	}

	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}

	applied := false
	transition := func(state entities.OrderState) (entities.OrderState, bool, error) {
		var (
			next    entities.OrderState
			changed bool
			err     error
		)
		if cmd.Status.IsOrderLevel() {
			next, changed, err = services.ApplyOrderOutcome(state, cmd.Status, now)
		} else {
			next, changed, err = services.ApplyDeliveryResult(state, services.DeliveryResult{
				Channel:          cmd.Channel,
				Destination:      strings.TrimSpace(cmd.Destination),
				Status:           cmd.Status,
				GatewayReference: cmd.GatewayReference,
			}, now)
		}
		applied = changed
		return next, changed, err
	}

	state, err := u.Orders.UpdateOrder(ctx, "", orderID, transition)
	if err != nil {
		logger.Warn("delivery result not applied",
			"event", "delivery_result_apply_failed",
			"module", application.LogModule,
			"layer", "application",
			"order_id", orderID,
			"status", cmd.Status,
			"error", err.Error(),
		)
		return ApplyDeliveryResultResult{}, err
	}

	logger.Info("delivery result applied",
		"event", "delivery_result_applied",
		"module", application.LogModule,
		"layer", "application",
		"order_id", orderID,
		"status", cmd.Status,
		"order_status", state.Order.Status,
		"applied", applied,
	)
	return ApplyDeliveryResultResult{State: state, Applied: applied}, nil
}
