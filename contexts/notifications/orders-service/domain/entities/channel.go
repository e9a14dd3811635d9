package entities

// ChannelScheme declares which channel a recipient is reached on and how
// fallback between email and SMS works.
type ChannelScheme string

const (
	ChannelSchemeEmail          ChannelScheme = "Email"
	ChannelSchemeSms            ChannelScheme = "Sms"
	ChannelSchemeEmailPreferred ChannelScheme = "EmailPreferred"
	ChannelSchemeSmsPreferred   ChannelScheme = "SmsPreferred"
	ChannelSchemeEmailAndSms    ChannelScheme = "EmailAndSms"
)

func (s ChannelScheme) IsValid() bool {
	switch s {
	case ChannelSchemeEmail,
		ChannelSchemeSms,
		ChannelSchemeEmailPreferred,
		ChannelSchemeSmsPreferred,
		ChannelSchemeEmailAndSms:
		return true
	default:
		return false
	}
}

// RequiresEmailSettings reports whether email content must be present up
// front. Preferred schemes need both contents so fallback can proceed
// without a second round trip to the caller.
func (s ChannelScheme) RequiresEmailSettings() bool {
	return s != ChannelSchemeSms
}

func (s ChannelScheme) RequiresSmsSettings() bool {
	return s != ChannelSchemeEmail
}

// SendingTimePolicy is the wall-clock window a sender may deliver in.
// Enforcement belongs to the channel senders.
type SendingTimePolicy string

const (
	SendingTimePolicyAnytime SendingTimePolicy = "Anytime"
	SendingTimePolicyDaytime SendingTimePolicy = "Daytime"
)

func (p SendingTimePolicy) IsValid() bool {
	return p == SendingTimePolicyAnytime || p == SendingTimePolicyDaytime
}

type EmailContentType string

const (
	EmailContentTypePlain EmailContentType = "Plain"
	EmailContentTypeHTML  EmailContentType = "Html"
)

func (t EmailContentType) IsValid() bool {
	return t == EmailContentTypePlain || t == EmailContentTypeHTML
}

// Channel is a concrete delivery medium.
type Channel string

const (
	ChannelEmail Channel = "Email"
	ChannelSms   Channel = "SMS"
)

type EmailSettings struct {
	SenderEmailAddress string
	Subject            string
	Body               string
	ContentType        EmailContentType
	SendingTimePolicy  SendingTimePolicy
}

type SmsSettings struct {
	Sender            string
	Body              string
	SendingTimePolicy SendingTimePolicy
}
