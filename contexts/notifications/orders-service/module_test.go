package ordersservice_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	ordersservice "courier/contexts/notifications/orders-service"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	httptransport "courier/contexts/notifications/orders-service/transport/http"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func emailChainRequest(idempotencyID string) httptransport.CreateOrderChainRequest {
	return httptransport.CreateOrderChainRequest{
		IdempotencyID:    idempotencyID,
		SendersReference: "ref-primary",
		Recipient: httptransport.RecipientDTO{
			RecipientEmail: &httptransport.RecipientEmailDTO{
				EmailAddress: "ola.nordmann@example.com",
				EmailSettings: &httptransport.EmailSettingsDTO{
					Subject: "Your tax report",
					Body:    "Please review it.",
				},
			},
		},
		Reminders: []httptransport.ReminderDTO{{
			SendersReference: "ref-reminder",
			DelayDays:        intPtr(3),
			Recipient: httptransport.RecipientDTO{
				RecipientSms: &httptransport.RecipientSmsDTO{
					PhoneNumber: "+4799999999",
					SmsSettings: &httptransport.SmsSettingsDTO{Body: "Reminder"},
				},
			},
		}},
	}
}

func TestCreateOrderChainReplaysIdempotentRequest(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-1"))
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Len(t, first.ReminderShipments, 1)
	require.Equal(t, "ref-primary", first.PrimaryOrderShipment.SendersReference)

	second, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-1"))
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.OrderChainID, second.OrderChainID)
	require.Equal(t, first.PrimaryOrderShipment, second.PrimaryOrderShipment)
	require.Equal(t, first.ReminderShipments, second.ReminderShipments)
	require.Equal(t, 1, module.Store.ChainCount())
}

func TestCreateOrderChainKeysAreScopedByCreator(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	first, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-1"))
	require.NoError(t, err)
	second, err := module.Handler.CreateOrderChainHandler(ctx, "org-2", emailChainRequest("idem-1"))
	require.NoError(t, err)

	require.False(t, second.Replayed)
	require.NotEqual(t, first.OrderChainID, second.OrderChainID)
	require.Equal(t, 2, module.Store.ChainCount())
}

func TestCreateOrderChainConcurrentSubmissionsAdmitOnce(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	const submissions = 16
	chainIDs := make([]string, submissions)
	errs := make([]error, submissions)

	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-race"))
			chainIDs[i] = resp.OrderChainID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < submissions; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, chainIDs[0], chainIDs[i])
	}
	require.Equal(t, 1, module.Store.ChainCount())
}

func TestCreateOrderChainCancelledRequestLeavesNoState(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-cancelled"))
	require.True(t, errors.Is(err, domainerrors.ErrRequestTerminated))
	require.Equal(t, 0, module.Store.ChainCount())

	resp, err := module.Handler.CreateOrderChainHandler(context.Background(), "org-1", emailChainRequest("idem-cancelled"))
	require.NoError(t, err)
	require.False(t, resp.Replayed)
}

func TestCreateOrderChainReportsEveryFailingField(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	req := emailChainRequest("idem-invalid")
	req.Recipient.RecipientEmail.EmailAddress = "not-an-address"
	req.Reminders[0].DelayDays = intPtr(0)

	_, err := module.Handler.CreateOrderChainHandler(context.Background(), "org-1", req)
	require.True(t, errors.Is(err, domainerrors.ErrValidation))

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Failures))
	for _, failure := range verr.Failures {
		fields = append(fields, failure.Field)
	}
	require.Contains(t, fields, "Recipient.RecipientEmail.EmailAddress")
	require.Contains(t, fields, "Reminders[0].DelayDays")
	require.Equal(t, 0, module.Store.ChainCount())
}

func TestCreateOrderChainStructuralFailuresUseFieldPaths(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	req := emailChainRequest("idem-structural")
	req.RequestedSendTime = "tomorrow"
	req.Recipient.RecipientEmail.EmailSettings.ContentType = "Markdown"

	_, err := module.Handler.CreateOrderChainHandler(context.Background(), "org-1", req)

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Failures))
	for _, failure := range verr.Failures {
		fields = append(fields, failure.Field)
	}
	require.ElementsMatch(t, []string{
		"RequestedSendTime",
		"Recipient.RecipientEmail.EmailSettings.ContentType",
	}, fields)
}

func TestCreateOrderChainReportsStructuralAndDomainFailuresTogether(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	req := emailChainRequest("")
	req.Recipient.RecipientEmail.EmailAddress = "nope"
	req.Recipient.RecipientEmail.EmailSettings.ContentType = "Markdown"
	req.Reminders[0].DelayDays = intPtr(0)

	_, err := module.Handler.CreateOrderChainHandler(context.Background(), "org-1", req)

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Failures))
	for _, failure := range verr.Failures {
		fields = append(fields, failure.Field)
	}
	require.ElementsMatch(t, []string{
		"IdempotencyId",
		"Recipient.RecipientEmail.EmailAddress",
		"Recipient.RecipientEmail.EmailSettings.ContentType",
		"Reminders[0].DelayDays",
	}, fields)
	require.Equal(t, 0, module.Store.ChainCount())
}

func TestCreateOrderChainRequiresCreator(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)

	_, err := module.Handler.CreateOrderChainHandler(context.Background(), " ", emailChainRequest("idem-1"))
	require.True(t, errors.Is(err, domainerrors.ErrMissingCreator))
}

func TestCancelOrderOnlyWhileRegistered(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-cancel"))
	require.NoError(t, err)
	reminderID := created.ReminderShipments[0].ShipmentID

	_, err = module.Handler.CancelOrderHandler(ctx, "org-2", reminderID)
	require.True(t, errors.Is(err, domainerrors.ErrOrderNotFound))

	cancelled, err := module.Handler.CancelOrderHandler(ctx, "org-1", reminderID)
	require.NoError(t, err)
	require.Equal(t, "Order_Cancelled", cancelled.Status.Status)

	_, err = module.Handler.CancelOrderHandler(ctx, "org-1", reminderID)
	require.True(t, errors.Is(err, domainerrors.ErrCancellationProhibited))
}

func TestGetShipmentIsScopedByCreator(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-manifest"))
	require.NoError(t, err)

	shipment, err := module.Handler.GetShipmentHandler(ctx, "org-1", created.PrimaryOrderShipment.ShipmentID)
	require.NoError(t, err)
	require.Equal(t, "Order_Registered", shipment.Status.Status)
	require.Equal(t, created.OrderChainID, shipment.OrderChainID)
	require.Empty(t, shipment.Recipients)

	_, err = module.Handler.GetShipmentHandler(ctx, "org-2", created.PrimaryOrderShipment.ShipmentID)
	require.True(t, errors.Is(err, domainerrors.ErrOrderNotFound))
}

func TestStatusFeedIsGaplessPerCreator(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	created, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest("idem-feed-1"))
	require.NoError(t, err)
	_, err = module.Handler.CreateOrderChainHandler(ctx, "org-2", emailChainRequest("idem-feed-1"))
	require.NoError(t, err)
	_, err = module.Handler.CancelOrderHandler(ctx, "org-1", created.ReminderShipments[0].ShipmentID)
	require.NoError(t, err)

	feed, err := module.Handler.ReadStatusFeedHandler(ctx, "org-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 3)
	for i, item := range feed.Items {
		require.Equal(t, int64(i+1), item.SequenceNumber)
	}
	require.Equal(t, "Order_Cancelled", feed.Items[2].Shipment.Status.Status)

	page, err := module.Handler.ReadStatusFeedHandler(ctx, "org-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(2), page.Items[0].SequenceNumber)

	caughtUp, err := module.Handler.ReadStatusFeedHandler(ctx, "org-1", 3, 0)
	require.NoError(t, err)
	require.Empty(t, caughtUp.Items)

	other, err := module.Handler.ReadStatusFeedHandler(ctx, "org-2", 0, 0)
	require.NoError(t, err)
	require.Len(t, other.Items, 2)
	require.Equal(t, int64(1), other.Items[0].SequenceNumber)
}

func TestStatusFeedStaysGaplessUnderConcurrentWriters(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()

	const writers = 24
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", emailChainRequest(fmt.Sprintf("idem-writer-%d", i)))
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = module.Handler.CancelOrderHandler(ctx, "org-1", created.ReminderShipments[0].ShipmentID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Two Registered entries per chain plus one Cancelled entry.
	const expected = writers * 3
	feed, err := module.Handler.ReadStatusFeedHandler(ctx, "org-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, expected)
	for i, item := range feed.Items {
		require.Equal(t, int64(i+1), item.SequenceNumber)
	}

	cancelled := 0
	for _, item := range feed.Items {
		if item.Shipment.Status.Status == "Order_Cancelled" {
			cancelled++
		}
	}
	require.Equal(t, writers, cancelled)

	tail, err := module.Handler.ReadStatusFeedHandler(ctx, "org-1", expected-5, 0)
	require.NoError(t, err)
	require.Len(t, tail.Items, 5)
	require.Equal(t, int64(expected-4), tail.Items[0].SequenceNumber)
}

func TestStatusFeedRejectsNegativeCursor(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)

	_, err := module.Handler.ReadStatusFeedHandler(context.Background(), "org-1", -1, 0)
	require.True(t, errors.Is(err, domainerrors.ErrInvalidFeedQuery))
}

func TestReminderSendTimeUsesDelayDaysFromPrimary(t *testing.T) {
	module := ordersservice.NewInMemoryModule(nil)
	ctx := context.Background()
	primaryAt := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	req := emailChainRequest("idem-delay")
	req.RequestedSendTime = primaryAt.Format(time.RFC3339)
	created, err := module.Handler.CreateOrderChainHandler(ctx, "org-1", req)
	require.NoError(t, err)

	state, err := module.Store.GetOrderState(ctx, "org-1", created.ReminderShipments[0].ShipmentID)
	require.NoError(t, err)
	require.True(t, state.Order.RequestedSendTime.Equal(primaryAt.Add(72*time.Hour)))
}
