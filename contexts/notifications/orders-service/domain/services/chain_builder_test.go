package services_test

import (
	"errors"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builderNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func emailSpec(address string) entities.RecipientSpec {
	return entities.RecipientSpec{
		Email: &entities.RecipientEmail{EmailAddress: address, Settings: *emailSettings()},
	}
}

func chainIDs(reminders int) entities.ChainIdentifiers {
	ids := entities.ChainIdentifiers{ChainID: "chain-1", PrimaryOrderID: "order-1"}
	for i := 0; i < reminders; i++ {
		ids.ReminderOrderIDs = append(ids.ReminderOrderIDs, "reminder-"+string(rune('a'+i)))
	}
	return ids
}

func TestBuildOrderChainDefaultsSendTimeToNow(t *testing.T) {
	chain, err := services.BuildOrderChain(entities.ChainRequest{
		Creator:          "ttd",
		IdempotencyID:    "D1111111",
		SendersReference: "ref-1",
		Recipient:        emailSpec("a@b.no"),
	}, chainIDs(0), builderNow)
	require.NoError(t, err)

	assert.Equal(t, "chain-1", chain.ChainID)
	assert.Equal(t, "order-1", chain.Primary.OrderID)
	assert.Equal(t, builderNow, chain.Primary.RequestedSendTime)
	assert.Equal(t, entities.OrderRegistered, chain.Primary.Status)
	assert.Equal(t, entities.OrderTypeNotification, chain.Primary.Type)

	handle := chain.TrackingHandle()
	assert.Equal(t, entities.Shipment{ShipmentID: "order-1", SendersReference: "ref-1"}, handle.Primary)
	assert.Empty(t, handle.Reminders)
}

func TestBuildOrderChainReminderDelayIsExact(t *testing.T) {
	primary := time.Date(2026, 3, 28, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	chain, err := services.BuildOrderChain(entities.ChainRequest{
		Creator:           "ttd",
		IdempotencyID:     "key",
		RequestedSendTime: timePtr(primary),
		Recipient:         emailSpec("a@b.no"),
		Reminders: []entities.ReminderRequest{
			{DelayDays: intPtr(3), Recipient: entities.RecipientSpec{
				Sms: &entities.RecipientSms{PhoneNumber: "+4799999999", Settings: *smsSettings()},
			}},
		},
	}, chainIDs(1), builderNow)
	require.NoError(t, err)

	require.Len(t, chain.Reminders, 1)
	reminder := chain.Reminders[0]
	assert.True(t, reminder.RequestedSendTime.Equal(primary.Add(72*time.Hour)))
	assert.Equal(t, entities.OrderTypeReminder, reminder.Type)
	assert.Equal(t, "chain-1", reminder.ChainID)
	assert.IsType(t, entities.RecipientSms{}, reminder.Recipient.Recipient)

	orders := chain.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "order-1", orders[0].OrderID)
}

func TestBuildOrderChainReminderTimingExclusivity(t *testing.T) {
	future := builderNow.Add(48 * time.Hour)
	_, err := services.BuildOrderChain(entities.ChainRequest{
		Creator:       "ttd",
		IdempotencyID: "key",
		Recipient:     emailSpec("a@b.no"),
		Reminders: []entities.ReminderRequest{
			{DelayDays: intPtr(1), RequestedSendTime: timePtr(future), Recipient: emailSpec("a@b.no")},
			{Recipient: emailSpec("a@b.no")},
			{DelayDays: intPtr(0), Recipient: emailSpec("a@b.no")},
			{RequestedSendTime: timePtr(builderNow.Add(-time.Hour)), Recipient: emailSpec("a@b.no")},
		},
	}, chainIDs(4), builderNow)

	assert.ElementsMatch(t, []string{
		"Reminders[0]",
		"Reminders[1]",
		"Reminders[2].DelayDays",
		"Reminders[3].RequestedSendTime",
	}, failureFields(t, err))
}

func TestBuildOrderChainCollectsEveryFailure(t *testing.T) {
	_, err := services.BuildOrderChain(entities.ChainRequest{
		Creator:           "ttd",
		RequestedSendTime: timePtr(builderNow.Add(-time.Hour)),
		ConditionEndpoint: "ftp://example.com/condition",
		DialogportenAssociation: &entities.DialogportenAssociation{
			DialogID: "not-a-uuid",
		},
		Recipient: entities.RecipientSpec{
			Person: &entities.RecipientPerson{
				NationalIdentityNumber: "16069412345",
				ChannelScheme:          entities.ChannelSchemeEmailPreferred,
				SmsSettings:            smsSettings(),
			},
		},
		Reminders: []entities.ReminderRequest{
			{DelayDays: intPtr(2), ConditionEndpoint: "/relative", Recipient: entities.RecipientSpec{}},
		},
	}, chainIDs(1), builderNow)

	assert.ElementsMatch(t, []string{
		"IdempotencyId",
		"RequestedSendTime",
		"ConditionEndpoint",
		"DialogportenAssociation.DialogId",
		"Recipient.RecipientPerson.EmailSettings",
		"Reminders[0].ConditionEndpoint",
		"Reminders[0].Recipient",
	}, failureFields(t, err))
}

func TestBuildOrderChainToleratesSmallClockSkew(t *testing.T) {
	_, err := services.BuildOrderChain(entities.ChainRequest{
		Creator:           "ttd",
		IdempotencyID:     "key",
		RequestedSendTime: timePtr(builderNow.Add(-2 * time.Minute)),
		ConditionEndpoint: "https://vg.no/condition",
		Recipient:         emailSpec("a@b.no"),
	}, chainIDs(0), builderNow)
	require.NoError(t, err)
}

func TestBuildOrderChainRequiresCreator(t *testing.T) {
	_, err := services.BuildOrderChain(entities.ChainRequest{
		IdempotencyID: "key",
		Recipient:     emailSpec("a@b.no"),
	}, chainIDs(0), builderNow)
	assert.True(t, errors.Is(err, domainerrors.ErrMissingCreator))
}
