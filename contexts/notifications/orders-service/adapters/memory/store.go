package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"
)

// Store is an in-memory adapter implementing the orders-service ports for
// local runtime and tests. The store mutex stands in for the transaction and
// sequence serialization a database provides; it is not production
// persistence.
type Store struct {
	mu            sync.RWMutex
	chains        map[string]entities.TrackingHandle
	orders        map[string]entities.Order
	insertedAt    map[string]uint64
	deliveries    map[string][]entities.Delivery
	feed          map[string][]entities.StatusFeedEntry
	eventDedup    map[string]eventReservation
	insertCounter uint64
	sequence      uint64
	logger        *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		chains:     make(map[string]entities.TrackingHandle),
		orders:     make(map[string]entities.Order),
		insertedAt: make(map[string]uint64),
		deliveries: make(map[string][]entities.Delivery),
		feed:       make(map[string][]entities.StatusFeedEntry),
		eventDedup: make(map[string]eventReservation),
		logger:     application.ResolveLogger(logger),
	}
}

func chainKey(creator string, idempotencyID string) string {
	return creator + "\x00" + idempotencyID
}

func (s *Store) GetTrackingByIdempotency(_ context.Context, creator string, idempotencyID string) (entities.TrackingHandle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle, ok := s.chains[chainKey(creator, idempotencyID)]
	return cloneHandle(handle), ok, nil
}

func (s *Store) AdmitChain(ctx context.Context, chain entities.OrderChain) (entities.TrackingHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chainKey(chain.Creator, chain.IdempotencyID)
	if existing, ok := s.chains[key]; ok {
		return cloneHandle(existing), false, nil
	}
	if err := ctx.Err(); err != nil {
		return entities.TrackingHandle{}, false, err
	}

	for _, order := range chain.Orders() {
		if _, exists := s.orders[order.OrderID]; exists {
			return entities.TrackingHandle{}, false, domainerrors.ErrRepositoryInvariantBroke
		}
	}

	handle := chain.TrackingHandle()
	s.chains[key] = handle
	for _, order := range chain.Orders() {
		s.insertCounter++
		s.orders[order.OrderID] = order
		s.insertedAt[order.OrderID] = s.insertCounter
		s.appendFeedLocked(entities.OrderState{Order: order}, chain.CreatedAt)
	}

	s.logger.Debug("memory chain admitted",
		"event", "memory_chain_admitted",
		"module", application.LogModule,
		"layer", "adapter",
		"order_chain_id", chain.ChainID,
		"creator", chain.Creator,
	)
	return cloneHandle(handle), true, nil
}

func (s *Store) GetOrderState(_ context.Context, creator string, orderID string) (entities.OrderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok || (creator != "" && order.Creator != creator) {
		return entities.OrderState{}, domainerrors.ErrOrderNotFound
	}
	return s.stateLocked(order), nil
}

func (s *Store) UpdateOrder(
	ctx context.Context,
	creator string,
	orderID string,
	transition ports.StateTransition,
) (entities.OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || (creator != "" && order.Creator != creator) {
		return entities.OrderState{}, domainerrors.ErrOrderNotFound
	}
	if err := ctx.Err(); err != nil {
		return entities.OrderState{}, err
	}

	current := s.stateLocked(order)
	next, changed, err := transition(current)
	if err != nil {
		return entities.OrderState{}, err
	}
	if !changed {
		return current, nil
	}
	s.saveLocked(next)
	return s.stateLocked(next.Order), nil
}

func (s *Store) ClaimDueOrders(
	ctx context.Context,
	now time.Time,
	limit int,
	transition ports.StateTransition,
) ([]entities.OrderState, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]entities.Order, 0)
	for _, order := range s.orders {
		if order.Status == entities.OrderRegistered && !order.RequestedSendTime.After(now) {
			due = append(due, order)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RequestedSendTime.Equal(due[j].RequestedSendTime) {
			return due[i].RequestedSendTime.Before(due[j].RequestedSendTime)
		}
		return s.insertedAt[due[i].OrderID] < s.insertedAt[due[j].OrderID]
	})
	if len(due) > limit {
		due = due[:limit]
	}

	// Transitions are evaluated before anything is saved so a failure
	// leaves every order untouched.
	next := make([]entities.OrderState, 0, len(due))
	for _, order := range due {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state, changed, err := transition(s.stateLocked(order))
		if err != nil {
			return nil, err
		}
		if changed {
			next = append(next, state)
		}
	}
	for _, state := range next {
		s.saveLocked(state)
	}
	return next, nil
}

func (s *Store) ListUndispatched(_ context.Context, limit int) ([]entities.OrderState, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]entities.Order, 0)
	for _, order := range s.orders {
		if order.Status == entities.OrderProcessing && order.DispatchedAt == nil {
			pending = append(pending, order)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].RequestedSendTime.Equal(pending[j].RequestedSendTime) {
			return pending[i].RequestedSendTime.Before(pending[j].RequestedSendTime)
		}
		return s.insertedAt[pending[i].OrderID] < s.insertedAt[pending[j].OrderID]
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	states := make([]entities.OrderState, 0, len(pending))
	for _, order := range pending {
		states = append(states, s.stateLocked(order))
	}
	return states, nil
}

func (s *Store) MarkDispatched(_ context.Context, orderIDs []string, dispatchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, orderID := range orderIDs {
		if _, ok := s.orders[orderID]; !ok {
			return domainerrors.ErrRepositoryInvariantBroke
		}
	}
	at := dispatchedAt.UTC()
	for _, orderID := range orderIDs {
		order := s.orders[orderID]
		order.DispatchedAt = &at
		s.orders[orderID] = order
	}
	return nil
}

func (s *Store) ReadStatusFeed(_ context.Context, creator string, afterSequence int64, limit int) ([]entities.StatusFeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.feed[creator]
	start := sort.Search(len(entries), func(i int) bool {
		return entries[i].SequenceNumber > afterSequence
	})
	end := len(entries)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return append([]entities.StatusFeedEntry(nil), entries[start:end]...), nil
}

type eventReservation struct {
	payloadHash string
	confirmed   bool
	expiresAt   time.Time
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.eventDedup[eventID]; ok && existing.expiresAt.After(time.Now()) {
		if existing.payloadHash != payloadHash {
			return false, fmt.Errorf("%w: event %s replayed with a different payload", domainerrors.ErrMalformedDeliveryResult, eventID)
		}
		if existing.confirmed {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", domainerrors.ErrEventInFlight, eventID)
	}
	s.eventDedup[eventID] = eventReservation{payloadHash: payloadHash, expiresAt: leaseUntil}
	return false, nil
}

func (s *Store) ConfirmEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventDedup[eventID] = eventReservation{payloadHash: payloadHash, confirmed: true, expiresAt: expiresAt}
	return nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.eventDedup, eventID)
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("order-%d", value), nil
}

// ChainCount exposes the number of admitted chains for tests.
func (s *Store) ChainCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chains)
}

func (s *Store) stateLocked(order entities.Order) entities.OrderState {
	return entities.OrderState{
		Order:      order,
		Deliveries: append([]entities.Delivery(nil), s.deliveries[order.OrderID]...),
	}
}

func (s *Store) saveLocked(state entities.OrderState) {
	s.orders[state.Order.OrderID] = state.Order
	s.deliveries[state.Order.OrderID] = append([]entities.Delivery(nil), state.Deliveries...)
	s.appendFeedLocked(state, state.Order.LastUpdate)
}

// appendFeedLocked assigns the next gapless sequence number for the creator.
func (s *Store) appendFeedLocked(state entities.OrderState, at time.Time) {
	creator := state.Order.Creator
	entries := s.feed[creator]
	next := int64(1)
	if len(entries) > 0 {
		next = entries[len(entries)-1].SequenceNumber + 1
	}
	s.feed[creator] = append(entries, entities.StatusFeedEntry{
		SequenceNumber: next,
		Creator:        creator,
		OrderID:        state.Order.OrderID,
		Snapshot:       entities.NewOrderStatusSnapshot(state),
		CreatedAt:      at.UTC(),
	})
}

func cloneHandle(handle entities.TrackingHandle) entities.TrackingHandle {
	handle.Reminders = append([]entities.Shipment(nil), handle.Reminders...)
	return handle
}
