package services

import (
	"fmt"
	"strings"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
)

const (
	// SendTimeTolerance absorbs clock skew and queueing latency between the
	// caller stamping a send time and intake evaluating it.
	SendTimeTolerance        = 5 * time.Minute
	MaxSendersReferenceChars = 100
	MaxIdempotencyIDChars    = 200
	reminderDay              = 24 * time.Hour
)

// BuildOrderChain validates a chain request and assembles the primary order
// and its reminders. All field failures across the primary and every
// reminder are returned together as a *ValidationError.
func BuildOrderChain(
	req entities.ChainRequest,
	ids entities.ChainIdentifiers,
	now time.Time,
) (entities.OrderChain, error) {
	if strings.TrimSpace(req.Creator) == "" {
		return entities.OrderChain{}, domainerrors.ErrMissingCreator
	}
	if strings.TrimSpace(ids.ChainID) == "" ||
		strings.TrimSpace(ids.PrimaryOrderID) == "" ||
		len(ids.ReminderOrderIDs) != len(req.Reminders) {
		return entities.OrderChain{}, fmt.Errorf("%w: chain identifiers do not match request", domainerrors.ErrRepositoryInvariantBroke)
	}

	verr := &domainerrors.ValidationError{}
	now = now.UTC()

	idempotencyID := strings.TrimSpace(req.IdempotencyID)
	switch {
	case idempotencyID == "":
		verr.Add("IdempotencyId", "must not be empty")
	case len(idempotencyID) > MaxIdempotencyIDChars:
		verr.Add("IdempotencyId", fmt.Sprintf("must be at most %d characters", MaxIdempotencyIDChars))
	}

	primarySendTime := now
	if req.RequestedSendTime != nil {
		primarySendTime = *req.RequestedSendTime
		if primarySendTime.Before(now.Add(-SendTimeTolerance)) {
			verr.Add("RequestedSendTime", "must not be in the past")
		}
	}

	validateSendersReference("SendersReference", req.SendersReference, verr)
	validateConditionEndpoint("ConditionEndpoint", req.ConditionEndpoint, verr)
	validateDialogportenAssociation("DialogportenAssociation", req.DialogportenAssociation, verr)

	primaryRecipient, err := ResolveRecipient("Recipient", req.Recipient)
	if !verr.Merge(err) {
		return entities.OrderChain{}, err
	}

	reminders := make([]entities.Order, 0, len(req.Reminders))
	for i, reminder := range req.Reminders {
		path := fmt.Sprintf("Reminders[%d]", i)

		sendTime := reminderSendTime(path, reminder, primarySendTime, now, verr)
		validateSendersReference(path+".SendersReference", reminder.SendersReference, verr)
		validateConditionEndpoint(path+".ConditionEndpoint", reminder.ConditionEndpoint, verr)

		recipient, err := ResolveRecipient(path+".Recipient", reminder.Recipient)
		if !verr.Merge(err) {
			return entities.OrderChain{}, err
		}

		reminders = append(reminders, entities.Order{
			OrderID:                 ids.ReminderOrderIDs[i],
			ChainID:                 ids.ChainID,
			Creator:                 req.Creator,
			SendersReference:        strings.TrimSpace(reminder.SendersReference),
			Type:                    entities.OrderTypeReminder,
			Recipient:               recipient,
			RequestedSendTime:       sendTime,
			ConditionEndpoint:       strings.TrimSpace(reminder.ConditionEndpoint),
			DialogportenAssociation: req.DialogportenAssociation,
			Status:                  entities.OrderRegistered,
			CreatedAt:               now,
			LastUpdate:              now,
		})
	}

	if err := verr.Err(); err != nil {
		return entities.OrderChain{}, err
	}

	primary := entities.Order{
		OrderID:                 ids.PrimaryOrderID,
		ChainID:                 ids.ChainID,
		Creator:                 req.Creator,
		SendersReference:        strings.TrimSpace(req.SendersReference),
		Type:                    entities.OrderTypeNotification,
		Recipient:               primaryRecipient,
		RequestedSendTime:       primarySendTime,
		ConditionEndpoint:       strings.TrimSpace(req.ConditionEndpoint),
		DialogportenAssociation: req.DialogportenAssociation,
		Status:                  entities.OrderRegistered,
		CreatedAt:               now,
		LastUpdate:              now,
	}

	return entities.OrderChain{
		ChainID:       ids.ChainID,
		Creator:       req.Creator,
		IdempotencyID: idempotencyID,
		CreatedAt:     now,
		Primary:       primary,
		Reminders:     reminders,
	}, nil
}

// ReminderSendTime computes the effective send time of a reminder relative
// to the primary requested send time.
func ReminderSendTime(primarySendTime time.Time, delayDays int) time.Time {
	return primarySendTime.Add(time.Duration(delayDays) * reminderDay)
}

func reminderSendTime(
	path string,
	reminder entities.ReminderRequest,
	primarySendTime time.Time,
	now time.Time,
	verr *domainerrors.ValidationError,
) time.Time {
	switch {
	case reminder.DelayDays != nil && reminder.RequestedSendTime != nil:
		verr.Add(path, "DelayDays and RequestedSendTime are mutually exclusive")
		return time.Time{}
	case reminder.DelayDays == nil && reminder.RequestedSendTime == nil:
		verr.Add(path, "one of DelayDays or RequestedSendTime is required")
		return time.Time{}
	case reminder.DelayDays != nil:
		if *reminder.DelayDays < 1 {
			verr.Add(path+".DelayDays", "must be at least 1")
			return time.Time{}
		}
		return ReminderSendTime(primarySendTime, *reminder.DelayDays)
	}

	sendTime := *reminder.RequestedSendTime
	if !sendTime.After(now) {
		verr.Add(path+".RequestedSendTime", "must be in the future")
	} else if sendTime.Before(primarySendTime) {
		verr.Add(path+".RequestedSendTime", "must not be before the primary requested send time")
	}
	return sendTime
}

func validateSendersReference(path string, reference string, verr *domainerrors.ValidationError) {
	if len(strings.TrimSpace(reference)) > MaxSendersReferenceChars {
		verr.Add(path, fmt.Sprintf("must be at most %d characters", MaxSendersReferenceChars))
	}
}

func validateConditionEndpoint(path string, endpoint string, verr *domainerrors.ValidationError) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return
	}
	if !IsAbsoluteHTTPURL(endpoint) {
		verr.Add(path, "must be an absolute http or https URI")
	}
}

func validateDialogportenAssociation(path string, association *entities.DialogportenAssociation, verr *domainerrors.ValidationError) {
	if association == nil {
		return
	}
	if association.DialogID != "" && !IsUUID(association.DialogID) {
		verr.Add(path+".DialogId", "must be a UUID")
	}
	if association.TransmissionID != "" && !IsUUID(association.TransmissionID) {
		verr.Add(path+".TransmissionId", "must be a UUID")
	}
	if association.DialogID == "" && association.TransmissionID != "" {
		verr.Add(path+".DialogId", "is required when TransmissionId is set")
	}
}
