package queries

import (
	"context"
	"log/slog"
	"strings"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"
)

type GetShipmentQuery struct {
	Creator    string
	ShipmentID string
}

type GetShipmentResult struct {
	Snapshot entities.OrderStatusSnapshot
}

type GetShipmentUseCase struct {
	Orders ports.OrderRepository
	Logger *slog.Logger
}

func (u GetShipmentUseCase) Execute(ctx context.Context, query GetShipmentQuery) (GetShipmentResult, error) {
	creator := strings.TrimSpace(query.Creator)
	shipmentID := strings.TrimSpace(query.ShipmentID)
	if creator == "" {
		return GetShipmentResult{}, domainerrors.ErrMissingCreator
	}
	if shipmentID == "" {
		return GetShipmentResult{}, domainerrors.ErrOrderNotFound
	}

	state, err := u.Orders.GetOrderState(ctx, creator, shipmentID)
	if err != nil {
		return GetShipmentResult{}, err
	}
	return GetShipmentResult{Snapshot: entities.NewOrderStatusSnapshot(state)}, nil
}
