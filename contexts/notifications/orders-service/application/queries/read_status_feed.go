package queries

import (
	"context"
	"log/slog"
	"strings"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"
)

const (
	DefaultStatusFeedLimit = 500
	MaxStatusFeedLimit     = 500
)

type ReadStatusFeedQuery struct {
	Creator       string
	AfterSequence int64
	Limit         int
}

type ReadStatusFeedResult struct {
	Entries []entities.StatusFeedEntry
}

type ReadStatusFeedUseCase struct {
	Feed   ports.StatusFeedRepository
	Logger *slog.Logger
}

// Execute returns entries with sequence strictly greater than AfterSequence in
// ascending order. An empty result means the caller is caught up.
func (u ReadStatusFeedUseCase) Execute(ctx context.Context, query ReadStatusFeedQuery) (ReadStatusFeedResult, error) {
	logger := application.ResolveLogger(u.Logger)
	creator := strings.TrimSpace(query.Creator)
	if creator == "" {
		return ReadStatusFeedResult{}, domainerrors.ErrMissingCreator
	}
	if query.AfterSequence < 0 {
		return ReadStatusFeedResult{}, domainerrors.ErrInvalidFeedQuery
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultStatusFeedLimit
	}
	if limit > MaxStatusFeedLimit {
		limit = MaxStatusFeedLimit
	}

	entries, err := u.Feed.ReadStatusFeed(ctx, creator, query.AfterSequence, limit)
	if err != nil {
		logger.Error("status feed read failed",
			"event", "status_feed_read_failed",
			"module", application.LogModule,
			"layer", "application",
			"creator", creator,
			"after_sequence", query.AfterSequence,
			"error", err.Error(),
		)
		return ReadStatusFeedResult{}, err
	}
	return ReadStatusFeedResult{Entries: entries}, nil
}
