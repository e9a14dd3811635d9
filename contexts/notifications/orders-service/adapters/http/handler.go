package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"courier/contexts/notifications/orders-service/application/commands"
	"courier/contexts/notifications/orders-service/application/queries"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	httptransport "courier/contexts/notifications/orders-service/transport/http"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("courier/contexts/notifications/orders-service")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339Nano, fl.Field().String())
		return err == nil
	})
	return v
}

type Handler struct {
	CreateOrderChain commands.CreateOrderChainUseCase
	CancelOrder      commands.CancelOrderUseCase
	GetShipment      queries.GetShipmentUseCase
	ReadStatusFeed   queries.ReadStatusFeedUseCase
	Logger           *slog.Logger
}

// CreateOrderChainHandler godoc
// @Summary Create a notification order chain
// @Description Admits a primary order with its reminders. Replaying an admitted idempotency id returns the original tracking handle.
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Creator header string true "Authenticated creator"
// @Param request body httptransport.CreateOrderChainRequest true "Order chain"
// @Success 201 {object} httptransport.CreateOrderChainResponse
// @Success 200 {object} httptransport.CreateOrderChainResponse
// @Failure 400 {object} httptransport.ValidationErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 499 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/orders/chain [post]
func (h Handler) CreateOrderChainHandler(
	ctx context.Context,
	creator string,
	req httptransport.CreateOrderChainRequest,
) (httptransport.CreateOrderChainResponse, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrderChain")
	defer span.End()
	span.SetAttributes(attribute.Int("courier.reminder_count", len(req.Reminders)))

	var structural *domainerrors.ValidationError
	if err := validateRequest(req); err != nil && !errors.As(err, &structural) {
		recordError(span, err)
		return httptransport.CreateOrderChainResponse{}, err
	}

	result, err := h.CreateOrderChain.Execute(ctx, commands.CreateOrderChainCommand{
		Request:    mapChainRequest(creator, req),
		Structural: structural,
	})
	if err != nil {
		recordError(span, err)
		return httptransport.CreateOrderChainResponse{}, err
	}
	span.SetAttributes(
		attribute.String("courier.order_chain_id", result.Handle.ChainID),
		attribute.Bool("courier.replayed", result.Replayed),
	)

	resp := httptransport.CreateOrderChainResponse{
		OrderChainID:         result.Handle.ChainID,
		PrimaryOrderShipment: mapShipment(result.Handle.Primary),
		ReminderShipments:    make([]httptransport.ShipmentDTO, 0, len(result.Handle.Reminders)),
		Replayed:             result.Replayed,
	}
	for _, reminder := range result.Handle.Reminders {
		resp.ReminderShipments = append(resp.ReminderShipments, mapShipment(reminder))
	}
	return resp, nil
}

// CancelOrderHandler godoc
// @Summary Cancel a registered order
// @Tags orders
// @Produce json
// @Param X-Creator header string true "Authenticated creator"
// @Param order_id path string true "Order id"
// @Success 200 {object} httptransport.ShipmentResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/orders/{order_id}/cancel [post]
func (h Handler) CancelOrderHandler(ctx context.Context, creator string, orderID string) (httptransport.ShipmentResponse, error) {
	ctx, span := tracer.Start(ctx, "orders.CancelOrder")
	defer span.End()

	result, err := h.CancelOrder.Execute(ctx, commands.CancelOrderCommand{
		Creator: creator,
		OrderID: orderID,
	})
	if err != nil {
		recordError(span, err)
		return httptransport.ShipmentResponse{}, err
	}
	return MapSnapshot(result.Snapshot), nil
}

// GetShipmentHandler godoc
// @Summary Get the delivery manifest of a shipment
// @Tags shipments
// @Produce json
// @Param X-Creator header string true "Authenticated creator"
// @Param shipment_id path string true "Shipment id"
// @Success 200 {object} httptransport.ShipmentResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/shipments/{shipment_id} [get]
func (h Handler) GetShipmentHandler(ctx context.Context, creator string, shipmentID string) (httptransport.ShipmentResponse, error) {
	ctx, span := tracer.Start(ctx, "orders.GetShipment")
	defer span.End()

	result, err := h.GetShipment.Execute(ctx, queries.GetShipmentQuery{
		Creator:    creator,
		ShipmentID: shipmentID,
	})
	if err != nil {
		recordError(span, err)
		return httptransport.ShipmentResponse{}, err
	}
	return MapSnapshot(result.Snapshot), nil
}

// ReadStatusFeedHandler godoc
// @Summary Read the status feed
// @Description Returns entries with a sequence number above seq in ascending order. An empty page means the caller is caught up.
// @Tags status-feed
// @Produce json
// @Param X-Creator header string true "Authenticated creator"
// @Param seq query int false "Exclusive sequence cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} httptransport.StatusFeedResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /v1/status-feed [get]
func (h Handler) ReadStatusFeedHandler(
	ctx context.Context,
	creator string,
	afterSequence int64,
	limit int,
) (httptransport.StatusFeedResponse, error) {
	ctx, span := tracer.Start(ctx, "orders.ReadStatusFeed")
	defer span.End()
	span.SetAttributes(attribute.Int64("courier.after_sequence", afterSequence))

	result, err := h.ReadStatusFeed.Execute(ctx, queries.ReadStatusFeedQuery{
		Creator:       creator,
		AfterSequence: afterSequence,
		Limit:         limit,
	})
	if err != nil {
		recordError(span, err)
		return httptransport.StatusFeedResponse{}, err
	}

	resp := httptransport.StatusFeedResponse{
		Items: make([]httptransport.StatusFeedItemDTO, 0, len(result.Entries)),
	}
	for _, entry := range result.Entries {
		resp.Items = append(resp.Items, httptransport.StatusFeedItemDTO{
			SequenceNumber: entry.SequenceNumber,
			OrderID:        entry.OrderID,
			CreatedAt:      entry.CreatedAt.UTC().Format(time.RFC3339Nano),
			Shipment:       MapSnapshot(entry.Snapshot),
		})
	}
	return resp, nil
}

// validateRequest runs the structural checks. Failures use the same path
// grammar as domain validation, e.g. Reminders[0].RequestedSendTime.
func validateRequest(req httptransport.CreateOrderChainRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	verr := &domainerrors.ValidationError{}
	for _, fieldErr := range fieldErrors {
		verr.Add(fieldPath(fieldErr.StructNamespace()), describeTag(fieldErr))
	}
	return verr
}

func fieldPath(namespace string) string {
	// Drop the root struct name.
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fieldErr.Param()
	case "rfc3339":
		return "must be an RFC 3339 timestamp"
	default:
		return "failed " + fieldErr.Tag() + " check"
	}
}

func mapChainRequest(creator string, req httptransport.CreateOrderChainRequest) entities.ChainRequest {
	chain := entities.ChainRequest{
		Creator:           creator,
		IdempotencyID:     req.IdempotencyID,
		SendersReference:  req.SendersReference,
		RequestedSendTime: parseOptionalTime(req.RequestedSendTime),
		ConditionEndpoint: req.ConditionEndpoint,
		Recipient:         mapRecipient(req.Recipient),
		Reminders:         make([]entities.ReminderRequest, 0, len(req.Reminders)),
	}
	if req.DialogportenAssociation != nil {
		chain.DialogportenAssociation = &entities.DialogportenAssociation{
			DialogID:       req.DialogportenAssociation.DialogID,
			TransmissionID: req.DialogportenAssociation.TransmissionID,
		}
	}
	for _, reminder := range req.Reminders {
		chain.Reminders = append(chain.Reminders, entities.ReminderRequest{
			SendersReference:  reminder.SendersReference,
			ConditionEndpoint: reminder.ConditionEndpoint,
			DelayDays:         reminder.DelayDays,
			RequestedSendTime: parseOptionalTime(reminder.RequestedSendTime),
			Recipient:         mapRecipient(reminder.Recipient),
		})
	}
	return chain
}

func mapRecipient(dto httptransport.RecipientDTO) entities.RecipientSpec {
	spec := entities.RecipientSpec{}
	if r := dto.RecipientEmail; r != nil {
		spec.Email = &entities.RecipientEmail{
			EmailAddress: r.EmailAddress,
			Settings:     derefEmailSettings(mapEmailSettings(r.EmailSettings)),
		}
	}
	if r := dto.RecipientSms; r != nil {
		spec.Sms = &entities.RecipientSms{
			PhoneNumber: r.PhoneNumber,
			Settings:    derefSmsSettings(mapSmsSettings(r.SmsSettings)),
		}
	}
	if r := dto.RecipientPerson; r != nil {
		spec.Person = &entities.RecipientPerson{
			NationalIdentityNumber: r.NationalIdentityNumber,
			ResourceID:             r.ResourceID,
			ChannelScheme:          entities.ChannelScheme(r.ChannelSchema),
			IgnoreReservation:      r.IgnoreReservation,
			EmailSettings:          mapEmailSettings(r.EmailSettings),
			SmsSettings:            mapSmsSettings(r.SmsSettings),
		}
	}
	if r := dto.RecipientOrganization; r != nil {
		spec.Organization = &entities.RecipientOrganization{
			OrgNumber:     r.OrgNumber,
			ResourceID:    r.ResourceID,
			ChannelScheme: entities.ChannelScheme(r.ChannelSchema),
			EmailSettings: mapEmailSettings(r.EmailSettings),
			SmsSettings:   mapSmsSettings(r.SmsSettings),
		}
	}
	if r := dto.RecipientEmailAndSms; r != nil {
		spec.EmailAndSms = &entities.RecipientEmailAndSms{
			EmailAddress:  r.EmailAddress,
			PhoneNumber:   r.PhoneNumber,
			EmailSettings: derefEmailSettings(mapEmailSettings(r.EmailSettings)),
			SmsSettings:   derefSmsSettings(mapSmsSettings(r.SmsSettings)),
		}
	}
	return spec
}

func mapEmailSettings(dto *httptransport.EmailSettingsDTO) *entities.EmailSettings {
	if dto == nil {
		return nil
	}
	return &entities.EmailSettings{
		SenderEmailAddress: dto.SenderEmailAddress,
		Subject:            dto.Subject,
		Body:               dto.Body,
		ContentType:        entities.EmailContentType(dto.ContentType),
		SendingTimePolicy:  entities.SendingTimePolicy(dto.SendingTimePolicy),
	}
}

func mapSmsSettings(dto *httptransport.SmsSettingsDTO) *entities.SmsSettings {
	if dto == nil {
		return nil
	}
	return &entities.SmsSettings{
		Sender:            dto.Sender,
		Body:              dto.Body,
		SendingTimePolicy: entities.SendingTimePolicy(dto.SendingTimePolicy),
	}
}

func derefEmailSettings(settings *entities.EmailSettings) entities.EmailSettings {
	if settings == nil {
		return entities.EmailSettings{}
	}
	return *settings
}

func derefSmsSettings(settings *entities.SmsSettings) entities.SmsSettings {
	if settings == nil {
		return entities.SmsSettings{}
	}
	return *settings
}

// parseOptionalTime expects input already checked by the rfc3339 rule.
func parseOptionalTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func mapShipment(shipment entities.Shipment) httptransport.ShipmentDTO {
	return httptransport.ShipmentDTO{
		ShipmentID:       shipment.ShipmentID,
		SendersReference: shipment.SendersReference,
	}
}

// MapSnapshot renders a status snapshot in its wire shape.
func MapSnapshot(snapshot entities.OrderStatusSnapshot) httptransport.ShipmentResponse {
	resp := httptransport.ShipmentResponse{
		ShipmentID:       snapshot.ShipmentID,
		SendersReference: snapshot.SendersReference,
		OrderChainID:     snapshot.ChainID,
		Type:             string(snapshot.Type),
		Status: httptransport.StatusDTO{
			Status:      string(snapshot.Status.Status),
			Description: snapshot.Status.Description,
			LastUpdate:  snapshot.Status.LastUpdate.UTC().Format(time.RFC3339Nano),
		},
		Recipients: make([]httptransport.RecipientStatusDTO, 0, len(snapshot.Recipients)),
		Summary:    snapshot.Summary,
	}
	for _, recipient := range snapshot.Recipients {
		resp.Recipients = append(resp.Recipients, httptransport.RecipientStatusDTO{
			Destination: recipient.Destination,
			Type:        string(recipient.Channel),
			Status:      string(recipient.Status),
			Description: recipient.Description,
			LastUpdate:  recipient.LastUpdate.UTC().Format(time.RFC3339Nano),
		})
	}
	return resp
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
