package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse lists every failing field, not only the first.
type ValidationErrorResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Errors  []FieldErrorDTO `json:"errors"`
}

type EmailSettingsDTO struct {
	SenderEmailAddress string `json:"senderEmailAddress,omitempty"`
	Subject            string `json:"subject"`
	Body               string `json:"body"`
	ContentType        string `json:"contentType,omitempty" validate:"omitempty,oneof=Plain Html"`
	SendingTimePolicy  string `json:"sendingTimePolicy,omitempty" validate:"omitempty,oneof=Anytime Daytime"`
}

type SmsSettingsDTO struct {
	Sender            string `json:"sender,omitempty"`
	Body              string `json:"body"`
	SendingTimePolicy string `json:"sendingTimePolicy,omitempty" validate:"omitempty,oneof=Anytime Daytime"`
}

type RecipientEmailDTO struct {
	EmailAddress  string            `json:"emailAddress"`
	EmailSettings *EmailSettingsDTO `json:"emailSettings" validate:"required"`
}

type RecipientSmsDTO struct {
	PhoneNumber string          `json:"phoneNumber"`
	SmsSettings *SmsSettingsDTO `json:"smsSettings" validate:"required"`
}

type RecipientPersonDTO struct {
	NationalIdentityNumber string            `json:"nationalIdentityNumber"`
	ResourceID             string            `json:"resourceId,omitempty"`
	ChannelSchema          string            `json:"channelSchema" validate:"required,oneof=Email Sms EmailPreferred SmsPreferred EmailAndSms"`
	IgnoreReservation      bool              `json:"ignoreReservation"`
	EmailSettings          *EmailSettingsDTO `json:"emailSettings,omitempty"`
	SmsSettings            *SmsSettingsDTO   `json:"smsSettings,omitempty"`
}

type RecipientOrganizationDTO struct {
	OrgNumber     string            `json:"orgNumber"`
	ResourceID    string            `json:"resourceId,omitempty"`
	ChannelSchema string            `json:"channelSchema" validate:"required,oneof=Email Sms EmailPreferred SmsPreferred EmailAndSms"`
	EmailSettings *EmailSettingsDTO `json:"emailSettings,omitempty"`
	SmsSettings   *SmsSettingsDTO   `json:"smsSettings,omitempty"`
}

type RecipientEmailAndSmsDTO struct {
	EmailAddress  string            `json:"emailAddress"`
	PhoneNumber   string            `json:"phoneNumber"`
	EmailSettings *EmailSettingsDTO `json:"emailSettings" validate:"required"`
	SmsSettings   *SmsSettingsDTO   `json:"smsSettings" validate:"required"`
}

// RecipientDTO carries exactly one populated variant.
type RecipientDTO struct {
	RecipientEmail        *RecipientEmailDTO        `json:"recipientEmail,omitempty"`
	RecipientSms          *RecipientSmsDTO          `json:"recipientSms,omitempty"`
	RecipientPerson       *RecipientPersonDTO       `json:"recipientPerson,omitempty"`
	RecipientOrganization *RecipientOrganizationDTO `json:"recipientOrganization,omitempty"`
	RecipientEmailAndSms  *RecipientEmailAndSmsDTO  `json:"recipientEmailAndSms,omitempty"`
}

type DialogportenAssociationDTO struct {
	DialogID       string `json:"dialogId"`
	TransmissionID string `json:"transmissionId,omitempty"`
}

type ReminderDTO struct {
	SendersReference  string       `json:"sendersReference,omitempty"`
	ConditionEndpoint string       `json:"conditionEndpoint,omitempty"`
	DelayDays         *int         `json:"delayDays,omitempty"`
	RequestedSendTime string       `json:"requestedSendTime,omitempty" validate:"omitempty,rfc3339"`
	Recipient         RecipientDTO `json:"recipient"`
}

type CreateOrderChainRequest struct {
	IdempotencyID           string                      `json:"idempotencyId"`
	SendersReference        string                      `json:"sendersReference,omitempty"`
	RequestedSendTime       string                      `json:"requestedSendTime,omitempty" validate:"omitempty,rfc3339"`
	ConditionEndpoint       string                      `json:"conditionEndpoint,omitempty"`
	DialogportenAssociation *DialogportenAssociationDTO `json:"dialogportenAssociation,omitempty"`
	Recipient               RecipientDTO                `json:"recipient"`
	Reminders               []ReminderDTO               `json:"reminders,omitempty" validate:"omitempty,dive"`
}

type ShipmentDTO struct {
	ShipmentID       string `json:"shipmentId"`
	SendersReference string `json:"sendersReference,omitempty"`
}

type CreateOrderChainResponse struct {
	OrderChainID         string        `json:"orderChainId"`
	PrimaryOrderShipment ShipmentDTO   `json:"primaryOrderShipment"`
	ReminderShipments    []ShipmentDTO `json:"reminderShipments"`
	Replayed             bool          `json:"-"`
}

type StatusDTO struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	LastUpdate  string `json:"lastUpdate"`
}

type RecipientStatusDTO struct {
	Destination string `json:"destination"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description"`
	LastUpdate  string `json:"lastUpdate"`
}

// ShipmentResponse is the delivery manifest of one order.
type ShipmentResponse struct {
	ShipmentID       string               `json:"shipmentId"`
	SendersReference string               `json:"sendersReference,omitempty"`
	OrderChainID     string               `json:"orderChainId"`
	Type             string               `json:"type"`
	Status           StatusDTO            `json:"status"`
	Recipients       []RecipientStatusDTO `json:"recipients"`
	Summary          map[string]int       `json:"summary,omitempty"`
}

type StatusFeedItemDTO struct {
	SequenceNumber int64            `json:"sequenceNumber"`
	OrderID        string           `json:"orderId"`
	CreatedAt      string           `json:"createdAt"`
	Shipment       ShipmentResponse `json:"shipment"`
}

type StatusFeedResponse struct {
	Items []StatusFeedItemDTO `json:"items"`
}
