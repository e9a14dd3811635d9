package commands

import (
	"context"
	"errors"
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

type CreateOrderChainCommand struct {
	Request entities.ChainRequest
	// Structural holds failures found before mapping, e.g. malformed enum
	// or timestamp fields. They are reported together with domain failures.
	Structural *domainerrors.ValidationError
}

type CreateOrderChainResult struct {
	Handle   entities.TrackingHandle
	Created  bool
	Replayed bool
}

type CreateOrderChainUseCase struct {
	Orders      ports.OrderRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute runs intake in this order:
// 1) idempotency lookup/replay by (creator, idempotency id)
// 2) identifier generation and chain build (recipient resolution, timing)
// 3) atomic compare-and-insert of the chain, its orders and feed entries.
//
// A replay never re-runs resolution. A request cancelled before the write
// commits is reported as ErrRequestTerminated and leaves nothing behind.
func (u CreateOrderChainUseCase) Execute(ctx context.Context, cmd CreateOrderChainCommand) (CreateOrderChainResult, error) {
	logger := application.ResolveLogger(u.Logger)
	req := cmd.Request
	req.Creator = strings.TrimSpace(req.Creator)
	req.IdempotencyID = strings.TrimSpace(req.IdempotencyID)
	if req.Creator == "" {
		return CreateOrderChainResult{}, domainerrors.ErrMissingCreator
	}
	if err := ctx.Err(); err != nil {
		return CreateOrderChainResult{}, terminated(err)
	}
	if cmd.Structural.HasFailures() {
		err := u.collectFailures(req, cmd.Structural)
		logger.Warn("create order chain rejected",
			"event", "create_order_chain_rejected",
			"module", application.LogModule,
			"layer", "application",
			"creator", req.Creator,
			"idempotency_id", req.IdempotencyID,
			"error", err.Error(),
		)
		return CreateOrderChainResult{}, err
	}

	logger.Info("create order chain started",
		"event", "create_order_chain_started",
		"module", application.LogModule,
		"layer", "application",
		"creator", req.Creator,
		"idempotency_id", req.IdempotencyID,
		"reminder_count", len(req.Reminders),
	)

	if req.IdempotencyID != "" {
		handle, found, err := u.Orders.GetTrackingByIdempotency(ctx, req.Creator, req.IdempotencyID)
		if err != nil {
			logger.Error("idempotency lookup failed",
				"event", "create_order_chain_idempotency_lookup_failed",
				"module", application.LogModule,
				"layer", "application",
				"creator", req.Creator,
				"idempotency_id", req.IdempotencyID,
				"error", err.Error(),
			)
			return CreateOrderChainResult{}, mapContextError(ctx, err)
		}
		if found {
			logger.Info("create order chain replayed from idempotency",
				"event", "create_order_chain_replayed",
				"module", application.LogModule,
				"layer", "application",
				"creator", req.Creator,
				"order_chain_id", handle.ChainID,
			)
			return CreateOrderChainResult{Handle: handle, Replayed: true}, nil
		}
	}

	ids, err := u.newChainIdentifiers(ctx, len(req.Reminders))
	if err != nil {
		return CreateOrderChainResult{}, mapContextError(ctx, err)
	}

	chain, err := services.BuildOrderChain(req, ids, u.now())
	if err != nil {
		logger.Warn("create order chain rejected",
			"event", "create_order_chain_rejected",
			"module", application.LogModule,
			"layer", "application",
			"creator", req.Creator,
			"idempotency_id", req.IdempotencyID,
			"error", err.Error(),
		)
		return CreateOrderChainResult{}, err
	}

	// Write boundary: the chain key, every order row and one Registered feed
	// entry per order are committed together by the repository adapter.
	handle, created, err := u.Orders.AdmitChain(ctx, chain)
	if err != nil {
		logger.Error("create order chain failed on write transaction",
			"event", "create_order_chain_write_failed",
			"module", application.LogModule,
			"layer", "application",
			"creator", req.Creator,
			"order_chain_id", chain.ChainID,
			"error", err.Error(),
		)
		return CreateOrderChainResult{}, mapContextError(ctx, err)
	}
	if !created {
		logger.Info("create order chain lost admission race",
			"event", "create_order_chain_replayed",
			"module", application.LogModule,
			"layer", "application",
			"creator", req.Creator,
			"order_chain_id", handle.ChainID,
		)
		return CreateOrderChainResult{Handle: handle, Replayed: true}, nil
	}

	logger.Info("order chain created",
		"event", "order_chain_created",
		"module", application.LogModule,
		"layer", "application",
		"creator", req.Creator,
		"order_chain_id", handle.ChainID,
		"primary_order_id", handle.Primary.ShipmentID,
		"reminder_count", len(handle.Reminders),
	)
	return CreateOrderChainResult{Handle: handle, Created: true}, nil
}

// collectFailures runs domain validation on a request already known to be
// invalid, with placeholder identifiers, and merges its failures behind the
// structural ones.
func (u CreateOrderChainUseCase) collectFailures(req entities.ChainRequest, structural *domainerrors.ValidationError) error {
	ids := entities.ChainIdentifiers{
		ChainID:          "unassigned",
		PrimaryOrderID:   "unassigned",
		ReminderOrderIDs: make([]string, len(req.Reminders)),
	}
	for i := range ids.ReminderOrderIDs {
		ids.ReminderOrderIDs[i] = fmt.Sprintf("unassigned-%d", i)
	}

	merged := &domainerrors.ValidationError{}
	merged.MergeNew(structural)
	_, err := services.BuildOrderChain(req, ids, u.now())
	var domainFailures *domainerrors.ValidationError
	if errors.As(err, &domainFailures) {
		merged.MergeNew(domainFailures)
	}
	return merged
}

func (u CreateOrderChainUseCase) newChainIdentifiers(ctx context.Context, reminders int) (entities.ChainIdentifiers, error) {
	chainID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.ChainIdentifiers{}, err
	}
	primaryID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.ChainIdentifiers{}, err
	}
	ids := entities.ChainIdentifiers{
		ChainID:          chainID,
		PrimaryOrderID:   primaryID,
		ReminderOrderIDs: make([]string, 0, reminders),
	}
	for i := 0; i < reminders; i++ {
		id, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.ChainIdentifiers{}, err
		}
		ids.ReminderOrderIDs = append(ids.ReminderOrderIDs, id)
	}
	return ids, nil
}

func (u CreateOrderChainUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

// mapContextError reports caller aborts distinctly from server faults.
func mapContextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return terminated(ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return terminated(err)
	}
	return err
}

func terminated(cause error) error {
	return fmt.Errorf("%w: %w", domainerrors.ErrRequestTerminated, cause)
}
