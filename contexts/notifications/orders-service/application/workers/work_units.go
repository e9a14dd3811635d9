package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	"courier/contexts/notifications/orders-service/ports"
	contractsv1 "courier/contracts/gen/events/v1"
)

const (
	emailRequestedEventType         = "notification.email.requested"
	smsRequestedEventType           = "notification.sms.requested"
	contactLookupRequestedEventType = "notification.contact_lookup.requested"
	sourceService                   = "courier-orders-service"
	notificationOrigin              = "order"
)

// Topics names the logical destinations of dispatched work units.
type Topics struct {
	Email  string
	Sms    string
	Lookup string
}

func (t Topics) withDefaults() Topics {
	if t.Email == "" {
		t.Email = "courier.email.queue"
	}
	if t.Sms == "" {
		t.Sms = "courier.sms.queue"
	}
	if t.Lookup == "" {
		t.Lookup = "courier.orders.pastdue"
	}
	return t
}

// All lists every topic produced to or consumed by the workers.
func (t Topics) All() []string {
	t = t.withDefaults()
	return []string{t.Email, t.Sms, t.Lookup, EmailStatusTopic, SmsStatusTopic, OrderStatusTopic}
}

type workUnit struct {
	Topic   string
	OrderID string
	Payload string
}

// buildWorkUnits serializes the work an order hands to downstream senders.
// Event ids are stable per order and destination across re-dispatch.
func buildWorkUnits(state entities.OrderState, topics Topics, now time.Time) ([]workUnit, error) {
	order := state.Order
	requested := order.RequestedSendTime.UTC().Format(time.RFC3339Nano)

	if order.Recipient.RequiresLookup {
		unit := lookupUnit(order, requested)
		payload, err := encodeEnvelope(order, contactLookupRequestedEventType, "lookup", now, unit)
		if err != nil {
			return nil, err
		}
		return []workUnit{{Topic: topics.Lookup, OrderID: order.OrderID, Payload: payload}}, nil
	}

	units := make([]workUnit, 0, len(state.Deliveries))
	for _, delivery := range state.Deliveries {
		if delivery.Status != entities.EmailNew && delivery.Status != entities.SmsNew {
			continue
		}
		switch delivery.Channel {
		case entities.ChannelEmail:
			settings, ok := emailSettingsOf(order.Recipient.Recipient)
			if !ok {
				return nil, fmt.Errorf("order %s has an email delivery without email settings", order.OrderID)
			}
			unit := ports.EmailWorkUnit{
				OrderID:            order.OrderID,
				Creator:            order.Creator,
				ToAddress:          delivery.Destination,
				FromAddress:        settings.SenderEmailAddress,
				Subject:            settings.Subject,
				Body:               settings.Body,
				ContentType:        string(settings.ContentType),
				SendingTimePolicy:  string(settings.SendingTimePolicy),
				ConditionEndpoint:  order.ConditionEndpoint,
				RequestedSendTime:  requested,
				SendersReference:   order.SendersReference,
				NotificationOrigin: notificationOrigin,
			}
			if order.DialogportenAssociation != nil {
				unit.DialogID = order.DialogportenAssociation.DialogID
				unit.TransmissionID = order.DialogportenAssociation.TransmissionID
			}
			payload, err := encodeEnvelope(order, emailRequestedEventType, "email:"+delivery.Destination, now, unit)
			if err != nil {
				return nil, err
			}
			units = append(units, workUnit{Topic: topics.Email, OrderID: order.OrderID, Payload: payload})
		case entities.ChannelSms:
			settings, ok := smsSettingsOf(order.Recipient.Recipient)
			if !ok {
				return nil, fmt.Errorf("order %s has an sms delivery without sms settings", order.OrderID)
			}
			unit := ports.SmsWorkUnit{
				OrderID:            order.OrderID,
				Creator:            order.Creator,
				MobileNumber:       delivery.Destination,
				Sender:             settings.Sender,
				Body:               settings.Body,
				SendingTimePolicy:  string(settings.SendingTimePolicy),
				ConditionEndpoint:  order.ConditionEndpoint,
				RequestedSendTime:  requested,
				SendersReference:   order.SendersReference,
				NotificationOrigin: notificationOrigin,
			}
			payload, err := encodeEnvelope(order, smsRequestedEventType, "sms:"+delivery.Destination, now, unit)
			if err != nil {
				return nil, err
			}
			units = append(units, workUnit{Topic: topics.Sms, OrderID: order.OrderID, Payload: payload})
		}
	}
	return units, nil
}

func lookupUnit(order entities.Order, requested string) ports.ContactLookupWorkUnit {
	unit := ports.ContactLookupWorkUnit{
		OrderID:           order.OrderID,
		Creator:           order.Creator,
		RecipientType:     string(order.Recipient.Recipient.Kind()),
		ChannelScheme:     string(order.Recipient.Scheme),
		ConditionEndpoint: order.ConditionEndpoint,
		RequestedSendTime: requested,
		SendersReference:  order.SendersReference,
	}

	var (
		email *entities.EmailSettings
		sms   *entities.SmsSettings
	)
	switch r := order.Recipient.Recipient.(type) {
	case entities.RecipientPerson:
		unit.NationalIdentityNumber = r.NationalIdentityNumber
		unit.ResourceID = r.ResourceID
		unit.IgnoreReservation = r.IgnoreReservation
		email, sms = r.EmailSettings, r.SmsSettings
	case entities.RecipientOrganization:
		unit.OrgNumber = r.OrgNumber
		unit.ResourceID = r.ResourceID
		email, sms = r.EmailSettings, r.SmsSettings
	}
	if email != nil {
		unit.Email = &ports.EmailWorkUnitTemplate{
			FromAddress:       email.SenderEmailAddress,
			Subject:           email.Subject,
			Body:              email.Body,
			ContentType:       string(email.ContentType),
			SendingTimePolicy: string(email.SendingTimePolicy),
		}
	}
	if sms != nil {
		unit.Sms = &ports.SmsWorkUnitTemplate{
			Sender:            sms.Sender,
			Body:              sms.Body,
			SendingTimePolicy: string(sms.SendingTimePolicy),
		}
	}
	return unit
}

func emailSettingsOf(recipient entities.NotificationRecipient) (entities.EmailSettings, bool) {
	switch r := recipient.(type) {
	case entities.RecipientEmail:
		return r.Settings, true
	case entities.RecipientEmailAndSms:
		return r.EmailSettings, true
	default:
		return entities.EmailSettings{}, false
	}
}

func smsSettingsOf(recipient entities.NotificationRecipient) (entities.SmsSettings, bool) {
	switch r := recipient.(type) {
	case entities.RecipientSms:
		return r.Settings, true
	case entities.RecipientEmailAndSms:
		return r.SmsSettings, true
	default:
		return entities.SmsSettings{}, false
	}
}

func encodeEnvelope(order entities.Order, eventType string, discriminator string, now time.Time, unit any) (string, error) {
	data, err := json.Marshal(unit)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(ports.EventEnvelope{
		EventID:          workUnitEventID(order.OrderID, discriminator),
		EventType:        eventType,
		OccurredAt:       now.UTC(),
		SourceService:    sourceService,
		SchemaVersion:    contractsv1.CurrentSchemaVersion,
		PartitionKeyPath: "order_id",
		PartitionKey:     order.OrderID,
		Data:             data,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func workUnitEventID(orderID string, discriminator string) string {
	sum := sha256.Sum256([]byte(orderID + "|" + discriminator))
	return hex.EncodeToString(sum[:16])
}
