package postgresadapter

import (
	"encoding/json"
	"fmt"

	"courier/contexts/notifications/orders-service/domain/entities"

	"gorm.io/datatypes"
)

// recipientDocument is the jsonb shape of a resolved recipient. Kind selects
// which of the remaining fields are meaningful.
type recipientDocument struct {
	Kind                   string                 `json:"kind"`
	Scheme                 string                 `json:"scheme"`
	RequiresLookup         bool                   `json:"requires_lookup"`
	EmailAddress           string                 `json:"email_address,omitempty"`
	PhoneNumber            string                 `json:"phone_number,omitempty"`
	NationalIdentityNumber string                 `json:"national_identity_number,omitempty"`
	OrgNumber              string                 `json:"org_number,omitempty"`
	ResourceID             string                 `json:"resource_id,omitempty"`
	IgnoreReservation      bool                   `json:"ignore_reservation,omitempty"`
	Email                  *emailSettingsDocument `json:"email,omitempty"`
	Sms                    *smsSettingsDocument   `json:"sms,omitempty"`
}

type emailSettingsDocument struct {
	SenderEmailAddress string `json:"sender_email_address,omitempty"`
	Subject            string `json:"subject"`
	Body               string `json:"body"`
	ContentType        string `json:"content_type"`
	SendingTimePolicy  string `json:"sending_time_policy"`
}

type smsSettingsDocument struct {
	Sender            string `json:"sender,omitempty"`
	Body              string `json:"body"`
	SendingTimePolicy string `json:"sending_time_policy"`
}

func encodeRecipient(resolved entities.ResolvedRecipient) (datatypes.JSON, error) {
	doc := recipientDocument{
		Scheme:         string(resolved.Scheme),
		RequiresLookup: resolved.RequiresLookup,
	}
	switch r := resolved.Recipient.(type) {
	case entities.RecipientEmail:
		doc.Kind = string(r.Kind())
		doc.EmailAddress = r.EmailAddress
		doc.Email = emailDocument(&r.Settings)
	case entities.RecipientSms:
		doc.Kind = string(r.Kind())
		doc.PhoneNumber = r.PhoneNumber
		doc.Sms = smsDocument(&r.Settings)
	case entities.RecipientPerson:
		doc.Kind = string(r.Kind())
		doc.NationalIdentityNumber = r.NationalIdentityNumber
		doc.ResourceID = r.ResourceID
		doc.IgnoreReservation = r.IgnoreReservation
		doc.Email = emailDocument(r.EmailSettings)
		doc.Sms = smsDocument(r.SmsSettings)
	case entities.RecipientOrganization:
		doc.Kind = string(r.Kind())
		doc.OrgNumber = r.OrgNumber
		doc.ResourceID = r.ResourceID
		doc.Email = emailDocument(r.EmailSettings)
		doc.Sms = smsDocument(r.SmsSettings)
	case entities.RecipientEmailAndSms:
		doc.Kind = string(r.Kind())
		doc.EmailAddress = r.EmailAddress
		doc.PhoneNumber = r.PhoneNumber
		doc.Email = emailDocument(&r.EmailSettings)
		doc.Sms = smsDocument(&r.SmsSettings)
	default:
		return nil, fmt.Errorf("unsupported recipient type %T", resolved.Recipient)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

func decodeRecipient(raw datatypes.JSON) (entities.ResolvedRecipient, error) {
	var doc recipientDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entities.ResolvedRecipient{}, err
	}

	resolved := entities.ResolvedRecipient{
		Scheme:         entities.ChannelScheme(doc.Scheme),
		RequiresLookup: doc.RequiresLookup,
	}
	switch entities.RecipientKind(doc.Kind) {
	case entities.RecipientKindEmail:
		resolved.Recipient = entities.RecipientEmail{
			EmailAddress: doc.EmailAddress,
			Settings:     derefEmail(doc.Email),
		}
	case entities.RecipientKindSms:
		resolved.Recipient = entities.RecipientSms{
			PhoneNumber: doc.PhoneNumber,
			Settings:    derefSms(doc.Sms),
		}
	case entities.RecipientKindPerson:
		resolved.Recipient = entities.RecipientPerson{
			NationalIdentityNumber: doc.NationalIdentityNumber,
			ResourceID:             doc.ResourceID,
			ChannelScheme:          resolved.Scheme,
			IgnoreReservation:      doc.IgnoreReservation,
			EmailSettings:          emailSettings(doc.Email),
			SmsSettings:            smsSettings(doc.Sms),
		}
	case entities.RecipientKindOrganization:
		resolved.Recipient = entities.RecipientOrganization{
			OrgNumber:     doc.OrgNumber,
			ResourceID:    doc.ResourceID,
			ChannelScheme: resolved.Scheme,
			EmailSettings: emailSettings(doc.Email),
			SmsSettings:   smsSettings(doc.Sms),
		}
	case entities.RecipientKindEmailAndSms:
		resolved.Recipient = entities.RecipientEmailAndSms{
			EmailAddress:  doc.EmailAddress,
			PhoneNumber:   doc.PhoneNumber,
			EmailSettings: derefEmail(doc.Email),
			SmsSettings:   derefSms(doc.Sms),
		}
	default:
		return entities.ResolvedRecipient{}, fmt.Errorf("unknown recipient kind %q", doc.Kind)
	}
	return resolved, nil
}

func emailDocument(settings *entities.EmailSettings) *emailSettingsDocument {
	if settings == nil {
		return nil
	}
	return &emailSettingsDocument{
		SenderEmailAddress: settings.SenderEmailAddress,
		Subject:            settings.Subject,
		Body:               settings.Body,
		ContentType:        string(settings.ContentType),
		SendingTimePolicy:  string(settings.SendingTimePolicy),
	}
}

func smsDocument(settings *entities.SmsSettings) *smsSettingsDocument {
	if settings == nil {
		return nil
	}
	return &smsSettingsDocument{
		Sender:            settings.Sender,
		Body:              settings.Body,
		SendingTimePolicy: string(settings.SendingTimePolicy),
	}
}

func emailSettings(doc *emailSettingsDocument) *entities.EmailSettings {
	if doc == nil {
		return nil
	}
	settings := derefEmail(doc)
	return &settings
}

func smsSettings(doc *smsSettingsDocument) *entities.SmsSettings {
	if doc == nil {
		return nil
	}
	settings := derefSms(doc)
	return &settings
}

func derefEmail(doc *emailSettingsDocument) entities.EmailSettings {
	if doc == nil {
		return entities.EmailSettings{}
	}
	return entities.EmailSettings{
		SenderEmailAddress: doc.SenderEmailAddress,
		Subject:            doc.Subject,
		Body:               doc.Body,
		ContentType:        entities.EmailContentType(doc.ContentType),
		SendingTimePolicy:  entities.SendingTimePolicy(doc.SendingTimePolicy),
	}
}

func derefSms(doc *smsSettingsDocument) entities.SmsSettings {
	if doc == nil {
		return entities.SmsSettings{}
	}
	return entities.SmsSettings{
		Sender:            doc.Sender,
		Body:              doc.Body,
		SendingTimePolicy: entities.SendingTimePolicy(doc.SendingTimePolicy),
	}
}
