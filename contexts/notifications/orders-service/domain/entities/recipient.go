package entities

type RecipientKind string

const (
	RecipientKindEmail        RecipientKind = "RecipientEmail"
	RecipientKindSms          RecipientKind = "RecipientSms"
	RecipientKindPerson       RecipientKind = "RecipientPerson"
	RecipientKindOrganization RecipientKind = "RecipientOrganization"
	RecipientKindEmailAndSms  RecipientKind = "RecipientEmailAndSms"
)

// NotificationRecipient is the closed set of recipient variants. Only the
// types in this file implement it.
type NotificationRecipient interface {
	Kind() RecipientKind
	sealedRecipient()
}

type RecipientEmail struct {
	EmailAddress string
	Settings     EmailSettings
}

type RecipientSms struct {
	PhoneNumber string
	Settings    SmsSettings
}

// RecipientPerson is addressed by national identity number; contact points
// are looked up downstream.
type RecipientPerson struct {
	NationalIdentityNumber string
	ResourceID             string
	ChannelScheme          ChannelScheme
	IgnoreReservation      bool
	EmailSettings          *EmailSettings
	SmsSettings            *SmsSettings
}

type RecipientOrganization struct {
	OrgNumber     string
	ResourceID    string
	ChannelScheme ChannelScheme
	EmailSettings *EmailSettings
	SmsSettings   *SmsSettings
}

type RecipientEmailAndSms struct {
	EmailAddress  string
	PhoneNumber   string
	EmailSettings EmailSettings
	SmsSettings   SmsSettings
}

func (RecipientEmail) Kind() RecipientKind        { return RecipientKindEmail }
func (RecipientSms) Kind() RecipientKind          { return RecipientKindSms }
func (RecipientPerson) Kind() RecipientKind       { return RecipientKindPerson }
func (RecipientOrganization) Kind() RecipientKind { return RecipientKindOrganization }
func (RecipientEmailAndSms) Kind() RecipientKind  { return RecipientKindEmailAndSms }

func (RecipientEmail) sealedRecipient()        {}
func (RecipientSms) sealedRecipient()          {}
func (RecipientPerson) sealedRecipient()       {}
func (RecipientOrganization) sealedRecipient() {}
func (RecipientEmailAndSms) sealedRecipient()  {}

// RecipientSpec is the wire-facing "one of" shape: at most one field should
// be populated. Resolution turns it into a NotificationRecipient.
type RecipientSpec struct {
	Email        *RecipientEmail
	Sms          *RecipientSms
	Person       *RecipientPerson
	Organization *RecipientOrganization
	EmailAndSms  *RecipientEmailAndSms
}

// Variants returns every populated variant in declaration order.
func (s RecipientSpec) Variants() []NotificationRecipient {
	variants := make([]NotificationRecipient, 0, 1)
	if s.Email != nil {
		variants = append(variants, *s.Email)
	}
	if s.Sms != nil {
		variants = append(variants, *s.Sms)
	}
	if s.Person != nil {
		variants = append(variants, *s.Person)
	}
	if s.Organization != nil {
		variants = append(variants, *s.Organization)
	}
	if s.EmailAndSms != nil {
		variants = append(variants, *s.EmailAndSms)
	}
	return variants
}

// ResolvedRecipient is the normalized delivery plan for one order.
type ResolvedRecipient struct {
	Recipient NotificationRecipient
	Scheme    ChannelScheme
	// RequiresLookup is set when addresses come from the external
	// contact-point registry rather than the request.
	RequiresLookup bool
}
