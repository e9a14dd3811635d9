package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const nextFeedSequenceSQL = `
INSERT INTO status_feed_sequences (creator, last_sequence)
VALUES (?, 1)
ON CONFLICT (creator) DO UPDATE
SET last_sequence = status_feed_sequences.last_sequence + 1
RETURNING last_sequence`

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the orders-service tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&orderChainModel{},
		&orderModel{},
		&deliveryModel{},
		&statusFeedModel{},
		&statusFeedSequenceModel{},
	)
}

func (r *Repository) GetTrackingByIdempotency(ctx context.Context, creator string, idempotencyID string) (entities.TrackingHandle, bool, error) {
	var row orderChainModel
	err := r.db.WithContext(ctx).
		Where("creator = ? AND idempotency_id = ?", strings.TrimSpace(creator), strings.TrimSpace(idempotencyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.TrackingHandle{}, false, nil
		}
		return entities.TrackingHandle{}, false, err
	}

	handle, err := loadTrackingHandle(r.db.WithContext(ctx), row.ChainID)
	if err != nil {
		return entities.TrackingHandle{}, false, err
	}
	return handle, true, nil
}

func (r *Repository) AdmitChain(ctx context.Context, chain entities.OrderChain) (entities.TrackingHandle, bool, error) {
	var (
		handle  entities.TrackingHandle
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chainRow := orderChainModel{
			ChainID:       chain.ChainID,
			Creator:       chain.Creator,
			IdempotencyID: chain.IdempotencyID,
			CreatedAt:     chain.CreatedAt.UTC(),
		}
		// A concurrent admission of the same key blocks on the unique index
		// and then skips the insert once the winner commits.
		createResult := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "creator"}, {Name: "idempotency_id"}},
				DoNothing: true,
			}).
			Create(&chainRow)
		if createResult.Error != nil {
			return createResult.Error
		}
		if createResult.RowsAffected == 0 {
			var existing orderChainModel
			if err := tx.
				Where("creator = ? AND idempotency_id = ?", chain.Creator, chain.IdempotencyID).
				First(&existing).
				Error; err != nil {
				return err
			}
			loaded, err := loadTrackingHandle(tx, existing.ChainID)
			if err != nil {
				return err
			}
			handle = loaded
			return nil
		}

		for position, order := range chain.Orders() {
			row, err := orderModelFromEntity(order, position)
			if err != nil {
				return err
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrRepositoryInvariantBroke
				}
				return err
			}
			if err := appendFeedEntryTx(tx, entities.OrderState{Order: order}, chain.CreatedAt); err != nil {
				return err
			}
		}
		handle = chain.TrackingHandle()
		created = true
		return nil
	})
	if err != nil {
		return entities.TrackingHandle{}, false, err
	}

	if created {
		r.logger.Debug("order chain persisted",
			"event", "postgres_chain_admitted",
			"module", "notifications/orders-service",
			"layer", "adapter",
			"order_chain_id", chain.ChainID,
			"order_count", len(chain.Reminders)+1,
		)
	}
	return handle, created, nil
}

func (r *Repository) GetOrderState(ctx context.Context, creator string, orderID string) (entities.OrderState, error) {
	tx := r.db.WithContext(ctx).Where("order_id = ?", strings.TrimSpace(orderID))
	if strings.TrimSpace(creator) != "" {
		tx = tx.Where("creator = ?", strings.TrimSpace(creator))
	}

	var row orderModel
	if err := tx.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.OrderState{}, domainerrors.ErrOrderNotFound
		}
		return entities.OrderState{}, err
	}
	states, err := loadStates(r.db.WithContext(ctx), []orderModel{row})
	if err != nil {
		return entities.OrderState{}, err
	}
	return states[0], nil
}

func (r *Repository) UpdateOrder(
	ctx context.Context,
	creator string,
	orderID string,
	transition ports.StateTransition,
) (entities.OrderState, error) {
	var result entities.OrderState

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", strings.TrimSpace(orderID))
		if strings.TrimSpace(creator) != "" {
			query = query.Where("creator = ?", strings.TrimSpace(creator))
		}

		var row orderModel
		if err := query.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOrderNotFound
			}
			return err
		}
		states, err := loadStates(tx, []orderModel{row})
		if err != nil {
			return err
		}

		next, changed, err := transition(states[0])
		if err != nil {
			return err
		}
		if !changed {
			result = states[0]
			return nil
		}
		if err := saveStateTx(tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return entities.OrderState{}, err
	}
	return result, nil
}

func (r *Repository) ClaimDueOrders(
	ctx context.Context,
	now time.Time,
	limit int,
	transition ports.StateTransition,
) ([]entities.OrderState, error) {
	if limit <= 0 {
		limit = 100
	}

	claimed := make([]entities.OrderState, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []orderModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND requested_send_time <= ?", string(entities.OrderRegistered), now.UTC()).
			Order("requested_send_time ASC").
			Order("chain_position ASC").
			Order("created_at ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		states, err := loadStates(tx, rows)
		if err != nil {
			return err
		}
		for _, state := range states {
			next, changed, err := transition(state)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := saveStateTx(tx, next); err != nil {
				return err
			}
			claimed = append(claimed, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *Repository) ListUndispatched(ctx context.Context, limit int) ([]entities.OrderState, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []orderModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND dispatched_at IS NULL", string(entities.OrderProcessing)).
		Order("requested_send_time ASC").
		Order("chain_position ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return loadStates(r.db.WithContext(ctx), rows)
}

func (r *Repository) MarkDispatched(ctx context.Context, orderIDs []string, dispatchedAt time.Time) error {
	if len(orderIDs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("order_id IN ?", orderIDs).
		Update("dispatched_at", dispatchedAt.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) ReadStatusFeed(ctx context.Context, creator string, afterSequence int64, limit int) ([]entities.StatusFeedEntry, error) {
	var rows []statusFeedModel
	query := r.db.WithContext(ctx).
		Where("creator = ? AND sequence_number > ?", strings.TrimSpace(creator), afterSequence).
		Order("sequence_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]entities.StatusFeedEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func loadTrackingHandle(tx *gorm.DB, chainID string) (entities.TrackingHandle, error) {
	var rows []orderModel
	if err := tx.
		Select("order_id", "senders_reference", "chain_position").
		Where("chain_id = ?", chainID).
		Order("chain_position ASC").
		Find(&rows).
		Error; err != nil {
		return entities.TrackingHandle{}, err
	}
	if len(rows) == 0 {
		return entities.TrackingHandle{}, domainerrors.ErrRepositoryInvariantBroke
	}

	handle := entities.TrackingHandle{
		ChainID: chainID,
		Primary: entities.Shipment{
			ShipmentID:       rows[0].OrderID,
			SendersReference: rows[0].SendersReference,
		},
		Reminders: make([]entities.Shipment, 0, len(rows)-1),
	}
	for _, row := range rows[1:] {
		handle.Reminders = append(handle.Reminders, entities.Shipment{
			ShipmentID:       row.OrderID,
			SendersReference: row.SendersReference,
		})
	}
	return handle, nil
}

func loadStates(tx *gorm.DB, rows []orderModel) ([]entities.OrderState, error) {
	orderIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		orderIDs = append(orderIDs, row.OrderID)
	}

	var deliveryRows []deliveryModel
	if err := tx.
		Where("order_id IN ?", orderIDs).
		Order("channel ASC").
		Order("destination ASC").
		Find(&deliveryRows).
		Error; err != nil {
		return nil, err
	}
	deliveries := make(map[string][]entities.Delivery, len(rows))
	for _, row := range deliveryRows {
		deliveries[row.OrderID] = append(deliveries[row.OrderID], row.toEntity())
	}

	states := make([]entities.OrderState, 0, len(rows))
	for _, row := range rows {
		order, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		states = append(states, entities.OrderState{
			Order:      order,
			Deliveries: deliveries[row.OrderID],
		})
	}
	return states, nil
}

func saveStateTx(tx *gorm.DB, state entities.OrderState) error {
	order := state.Order
	if err := tx.Model(&orderModel{}).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]any{
			"status":        string(order.Status),
			"last_update":   order.LastUpdate.UTC(),
			"dispatched_at": utcPtr(order.DispatchedAt),
		}).
		Error; err != nil {
		return err
	}

	if len(state.Deliveries) > 0 {
		rows := make([]deliveryModel, 0, len(state.Deliveries))
		for _, delivery := range state.Deliveries {
			rows = append(rows, deliveryModelFromEntity(delivery))
		}
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_id"}, {Name: "channel"}, {Name: "destination"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "gateway_reference", "last_update"}),
			}).
			Create(&rows).
			Error; err != nil {
			return err
		}
	}
	return appendFeedEntryTx(tx, state, order.LastUpdate)
}

// appendFeedEntryTx allocates the creator's next sequence number. The counter
// row stays locked until commit, so entries become visible in sequence order
// and a rolled back transaction leaves no gap.
func appendFeedEntryTx(tx *gorm.DB, state entities.OrderState, at time.Time) error {
	var sequence int64
	if err := tx.Raw(nextFeedSequenceSQL, state.Order.Creator).Scan(&sequence).Error; err != nil {
		return err
	}

	snapshot, err := json.Marshal(entities.NewOrderStatusSnapshot(state))
	if err != nil {
		return err
	}
	row := statusFeedModel{
		Creator:        state.Order.Creator,
		SequenceNumber: sequence,
		OrderID:        state.Order.OrderID,
		Snapshot:       datatypes.JSON(snapshot),
		CreatedAt:      at.UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
