package services

import (
	"strings"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
)

const (
	resourceIDPrefix         = "urn:altinn:resource:"
	nationalIdentityLength   = 11
	organizationNumberLength = 9
)

// ResolveRecipient validates and normalizes one recipient specification and
// returns its delivery plan. Every failure found is reported under path.
func ResolveRecipient(path string, spec entities.RecipientSpec) (entities.ResolvedRecipient, error) {
	verr := &domainerrors.ValidationError{}

	variants := spec.Variants()
	switch len(variants) {
	case 0:
		verr.Add(path, "exactly one recipient type must be set")
		return entities.ResolvedRecipient{}, verr
	case 1:
	default:
		verr.Add(path, "only one recipient type may be set")
		return entities.ResolvedRecipient{}, verr
	}

	resolved := resolveVariant(path, variants[0], verr)
	if err := verr.Err(); err != nil {
		return entities.ResolvedRecipient{}, err
	}
	return resolved, nil
}

func resolveVariant(path string, recipient entities.NotificationRecipient, verr *domainerrors.ValidationError) entities.ResolvedRecipient {
	variantPath := path + "." + string(recipient.Kind())

	switch r := recipient.(type) {
	case entities.RecipientEmail:
		r.EmailAddress = strings.TrimSpace(r.EmailAddress)
		validateEmailAddress(variantPath+".EmailAddress", r.EmailAddress, verr)
		r.Settings = normalizeEmailSettings(variantPath+".EmailSettings", r.Settings, verr)
		return entities.ResolvedRecipient{Recipient: r, Scheme: entities.ChannelSchemeEmail}

	case entities.RecipientSms:
		r.PhoneNumber = NormalizePhoneNumber(r.PhoneNumber)
		validatePhoneNumber(variantPath+".PhoneNumber", r.PhoneNumber, verr)
		r.Settings = normalizeSmsSettings(variantPath+".SmsSettings", r.Settings, verr)
		return entities.ResolvedRecipient{Recipient: r, Scheme: entities.ChannelSchemeSms}

	case entities.RecipientEmailAndSms:
		r.EmailAddress = strings.TrimSpace(r.EmailAddress)
		r.PhoneNumber = NormalizePhoneNumber(r.PhoneNumber)
		validateEmailAddress(variantPath+".EmailAddress", r.EmailAddress, verr)
		validatePhoneNumber(variantPath+".PhoneNumber", r.PhoneNumber, verr)
		r.EmailSettings = normalizeEmailSettings(variantPath+".EmailSettings", r.EmailSettings, verr)
		r.SmsSettings = normalizeSmsSettings(variantPath+".SmsSettings", r.SmsSettings, verr)
		return entities.ResolvedRecipient{Recipient: r, Scheme: entities.ChannelSchemeEmailAndSms}

	case entities.RecipientPerson:
		r.NationalIdentityNumber = strings.TrimSpace(r.NationalIdentityNumber)
		if !isDigits(r.NationalIdentityNumber, nationalIdentityLength) {
			verr.Add(variantPath+".NationalIdentityNumber", "must be exactly 11 digits")
		}
		r.ResourceID = validateResourceID(variantPath+".ResourceId", r.ResourceID, verr)
		r.EmailSettings, r.SmsSettings = resolveSchemeSettings(variantPath, r.ChannelScheme, r.EmailSettings, r.SmsSettings, verr)
		return entities.ResolvedRecipient{Recipient: r, Scheme: r.ChannelScheme, RequiresLookup: true}

	case entities.RecipientOrganization:
		r.OrgNumber = strings.TrimSpace(r.OrgNumber)
		if !isDigits(r.OrgNumber, organizationNumberLength) {
			verr.Add(variantPath+".OrgNumber", "must be exactly 9 digits")
		}
		r.ResourceID = validateResourceID(variantPath+".ResourceId", r.ResourceID, verr)
		r.EmailSettings, r.SmsSettings = resolveSchemeSettings(variantPath, r.ChannelScheme, r.EmailSettings, r.SmsSettings, verr)
		return entities.ResolvedRecipient{Recipient: r, Scheme: r.ChannelScheme, RequiresLookup: true}
	}

	verr.Add(path, "unsupported recipient type")
	return entities.ResolvedRecipient{}
}

// resolveSchemeSettings enforces settings completeness for the declared
// scheme. Settings for a channel the scheme never uses are kept as given.
func resolveSchemeSettings(
	path string,
	scheme entities.ChannelScheme,
	email *entities.EmailSettings,
	sms *entities.SmsSettings,
	verr *domainerrors.ValidationError,
) (*entities.EmailSettings, *entities.SmsSettings) {
	if !scheme.IsValid() {
		verr.Add(path+".ChannelSchema", "must be one of Email, Sms, EmailPreferred, SmsPreferred, EmailAndSms")
		return email, sms
	}

	if scheme.RequiresEmailSettings() && email == nil {
		verr.Add(path+".EmailSettings", "is required for channel scheme "+string(scheme))
	}
	if scheme.RequiresSmsSettings() && sms == nil {
		verr.Add(path+".SmsSettings", "is required for channel scheme "+string(scheme))
	}

	if email != nil {
		normalized := normalizeEmailSettings(path+".EmailSettings", *email, verr)
		email = &normalized
	}
	if sms != nil {
		normalized := normalizeSmsSettings(path+".SmsSettings", *sms, verr)
		sms = &normalized
	}
	return email, sms
}

func normalizeEmailSettings(path string, settings entities.EmailSettings, verr *domainerrors.ValidationError) entities.EmailSettings {
	settings.Subject = strings.TrimSpace(settings.Subject)
	settings.SenderEmailAddress = strings.TrimSpace(settings.SenderEmailAddress)
	if settings.Subject == "" {
		verr.Add(path+".Subject", "must not be empty")
	}
	if strings.TrimSpace(settings.Body) == "" {
		verr.Add(path+".Body", "must not be empty")
	}
	if settings.SenderEmailAddress != "" && !IsValidEmailAddress(settings.SenderEmailAddress) {
		verr.Add(path+".SenderEmailAddress", "is not a valid email address")
	}

	if settings.ContentType == "" {
		settings.ContentType = entities.EmailContentTypePlain
	} else if !settings.ContentType.IsValid() {
		verr.Add(path+".ContentType", "must be Plain or Html")
	}

	if settings.SendingTimePolicy == "" {
		settings.SendingTimePolicy = entities.SendingTimePolicyAnytime
	} else if !settings.SendingTimePolicy.IsValid() {
		verr.Add(path+".SendingTimePolicy", "must be Anytime or Daytime")
	}
	return settings
}

func normalizeSmsSettings(path string, settings entities.SmsSettings, verr *domainerrors.ValidationError) entities.SmsSettings {
	settings.Sender = strings.TrimSpace(settings.Sender)
	if strings.TrimSpace(settings.Body) == "" {
		verr.Add(path+".Body", "must not be empty")
	}

	if settings.SendingTimePolicy == "" {
		settings.SendingTimePolicy = entities.SendingTimePolicyDaytime
	} else if !settings.SendingTimePolicy.IsValid() {
		verr.Add(path+".SendingTimePolicy", "must be Anytime or Daytime")
	}
	return settings
}

func validateEmailAddress(path string, address string, verr *domainerrors.ValidationError) {
	if address == "" {
		verr.Add(path, "must not be empty")
		return
	}
	if !IsValidEmailAddress(address) {
		verr.Add(path, "is not a valid email address")
	}
}

func validatePhoneNumber(path string, number string, verr *domainerrors.ValidationError) {
	if number == "" {
		verr.Add(path, "must not be empty")
		return
	}
	if !IsValidPhoneNumber(number) {
		verr.Add(path, "is not a valid international phone number")
	}
}

func validateResourceID(path string, resourceID string, verr *domainerrors.ValidationError) string {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return ""
	}
	if !strings.HasPrefix(resourceID, resourceIDPrefix) || len(resourceID) == len(resourceIDPrefix) {
		verr.Add(path, "must start with "+resourceIDPrefix)
	}
	return resourceID
}
