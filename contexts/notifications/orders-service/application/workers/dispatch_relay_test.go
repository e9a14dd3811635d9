package workers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/adapters/memory"
	"courier/contexts/notifications/orders-service/application/workers"
	"courier/contexts/notifications/orders-service/domain/entities"
	"courier/contexts/notifications/orders-service/ports"

	"github.com/stretchr/testify/require"
)

func TestDispatchRelayPublishesDueOrderOnce(t *testing.T) {
	store := memory.NewStore(nil)
	handle := admitChain(t, store, "idem-1", emailRecipient("ola@example.com"))
	publisher := newRecordingPublisher()
	relay := workers.DispatchRelay{Orders: store, Publisher: publisher, Clock: soon()}

	require.NoError(t, relay.RunOnce(context.Background()))

	envelopes := publisher.envelopes(t, "courier.email.queue")
	require.Len(t, envelopes, 1)
	require.Equal(t, "notification.email.requested", envelopes[0].EventType)
	require.Equal(t, handle.Primary.ShipmentID, envelopes[0].PartitionKey)

	var unit ports.EmailWorkUnit
	require.NoError(t, json.Unmarshal(envelopes[0].Data, &unit))
	require.Equal(t, "ola@example.com", unit.ToAddress)
	require.Equal(t, "Plain", unit.ContentType)

	state, err := store.GetOrderState(context.Background(), "org-1", handle.Primary.ShipmentID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderProcessing, state.Order.Status)
	require.NotNil(t, state.Order.DispatchedAt)
	require.Len(t, state.Deliveries, 1)
	require.Equal(t, entities.EmailNew, state.Deliveries[0].Status)

	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.envelopes(t, "courier.email.queue"), 1)
}

func TestDispatchRelaySkipsOrdersNotYetDue(t *testing.T) {
	store := memory.NewStore(nil)
	handle := admitChain(t, store, "idem-1", emailRecipient("ola@example.com"))
	publisher := newRecordingPublisher()
	past := fixedClock{now: store.Now().Add(-5 * time.Minute)}
	relay := workers.DispatchRelay{Orders: store, Publisher: publisher, Clock: past}

	require.NoError(t, relay.RunOnce(context.Background()))
	require.Zero(t, publisher.calls)

	state, err := store.GetOrderState(context.Background(), "org-1", handle.Primary.ShipmentID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderRegistered, state.Order.Status)
}

func TestDispatchRelayRetriesPartiallyPublishedOrders(t *testing.T) {
	store := memory.NewStore(nil)
	handle := admitChain(t, store, "idem-1", entities.RecipientSpec{
		EmailAndSms: &entities.RecipientEmailAndSms{
			EmailAddress:  "ola@example.com",
			PhoneNumber:   "+4799999999",
			EmailSettings: emailSettings(),
			SmsSettings:   smsSettings(),
		},
	})
	publisher := newRecordingPublisher()
	publisher.reject = func(topic string, _ string) bool {
		return topic == "courier.sms.queue"
	}
	relay := workers.DispatchRelay{Orders: store, Publisher: publisher, Clock: soon()}

	require.NoError(t, relay.RunOnce(context.Background()))
	first := publisher.envelopes(t, "courier.email.queue")
	require.Len(t, first, 1)

	state, err := store.GetOrderState(context.Background(), "org-1", handle.Primary.ShipmentID)
	require.NoError(t, err)
	require.Nil(t, state.Order.DispatchedAt)

	publisher.reject = nil
	require.NoError(t, relay.RunOnce(context.Background()))

	emails := publisher.envelopes(t, "courier.email.queue")
	require.Len(t, emails, 2)
	require.Equal(t, emails[0].EventID, emails[1].EventID)
	require.Len(t, publisher.envelopes(t, "courier.sms.queue"), 1)

	state, err = store.GetOrderState(context.Background(), "org-1", handle.Primary.ShipmentID)
	require.NoError(t, err)
	require.NotNil(t, state.Order.DispatchedAt)
}

func TestDispatchRelayRoutesLookupRecipients(t *testing.T) {
	store := memory.NewStore(nil)
	settings := emailSettings()
	admitChain(t, store, "idem-1", entities.RecipientSpec{
		Person: &entities.RecipientPerson{
			NationalIdentityNumber: "16069412345",
			ChannelScheme:          entities.ChannelSchemeEmail,
			IgnoreReservation:      true,
			EmailSettings:          &settings,
		},
	})
	publisher := newRecordingPublisher()
	relay := workers.DispatchRelay{Orders: store, Publisher: publisher, Clock: soon()}

	require.NoError(t, relay.RunOnce(context.Background()))

	envelopes := publisher.envelopes(t, "courier.orders.pastdue")
	require.Len(t, envelopes, 1)
	require.Equal(t, "notification.contact_lookup.requested", envelopes[0].EventType)

	var unit ports.ContactLookupWorkUnit
	require.NoError(t, json.Unmarshal(envelopes[0].Data, &unit))
	require.Equal(t, "16069412345", unit.NationalIdentityNumber)
	require.True(t, unit.IgnoreReservation)
	require.NotNil(t, unit.Email)
	require.Nil(t, unit.Sms)
	require.Equal(t, "Email", unit.ChannelScheme)
}
