package entities

import "strings"

// ProcessingLifecycle is the closed status vocabulary shared with feed
// consumers and channel senders. Values are wire-stable; adding one is a
// breaking change for consumers.
type ProcessingLifecycle string

const (
	OrderRegistered          ProcessingLifecycle = "Order_Registered"
	OrderProcessing          ProcessingLifecycle = "Order_Processing"
	OrderCompleted           ProcessingLifecycle = "Order_Completed"
	OrderSendConditionNotMet ProcessingLifecycle = "Order_SendConditionNotMet"
	OrderCancelled           ProcessingLifecycle = "Order_Cancelled"

	SmsNew                          ProcessingLifecycle = "SMS_New"
	SmsSending                      ProcessingLifecycle = "SMS_Sending"
	SmsAccepted                     ProcessingLifecycle = "SMS_Accepted"
	SmsDelivered                    ProcessingLifecycle = "SMS_Delivered"
	SmsFailed                       ProcessingLifecycle = "SMS_Failed"
	SmsFailedExpired                ProcessingLifecycle = "SMS_Failed_Expired"
	SmsFailedRejected               ProcessingLifecycle = "SMS_Failed_Rejected"
	SmsFailedUndelivered            ProcessingLifecycle = "SMS_Failed_Undelivered"
	SmsFailedBarredReceiver         ProcessingLifecycle = "SMS_Failed_BarredReceiver"
	SmsFailedInvalidRecipient       ProcessingLifecycle = "SMS_Failed_InvalidRecipient"
	SmsFailedRecipientReserved      ProcessingLifecycle = "SMS_Failed_RecipientReserved"
	SmsFailedRecipientNotIdentified ProcessingLifecycle = "SMS_Failed_RecipientNotIdentified"

	EmailNew                          ProcessingLifecycle = "Email_New"
	EmailSending                      ProcessingLifecycle = "Email_Sending"
	EmailSucceeded                    ProcessingLifecycle = "Email_Succeeded"
	EmailDelivered                    ProcessingLifecycle = "Email_Delivered"
	EmailFailed                       ProcessingLifecycle = "Email_Failed"
	EmailFailedBounced                ProcessingLifecycle = "Email_Failed_Bounced"
	EmailFailedQuarantined            ProcessingLifecycle = "Email_Failed_Quarantined"
	EmailFailedFilteredSpam           ProcessingLifecycle = "Email_Failed_FilteredSpam"
	EmailFailedInvalidFormat          ProcessingLifecycle = "Email_Failed_InvalidFormat"
	EmailFailedTransientError         ProcessingLifecycle = "Email_Failed_TransientError"
	EmailFailedSuppressedRecipient    ProcessingLifecycle = "Email_Failed_SuppressedRecipient"
	EmailFailedRecipientReserved      ProcessingLifecycle = "Email_Failed_RecipientReserved"
	EmailFailedRecipientNotIdentified ProcessingLifecycle = "Email_Failed_RecipientNotIdentified"
)

var processingLifecycles = []ProcessingLifecycle{
	OrderRegistered,
	OrderProcessing,
	OrderCompleted,
	OrderSendConditionNotMet,
	OrderCancelled,
	SmsNew,
	SmsSending,
	SmsAccepted,
	SmsDelivered,
	SmsFailed,
	SmsFailedExpired,
	SmsFailedRejected,
	SmsFailedUndelivered,
	SmsFailedBarredReceiver,
	SmsFailedInvalidRecipient,
	SmsFailedRecipientReserved,
	SmsFailedRecipientNotIdentified,
	EmailNew,
	EmailSending,
	EmailSucceeded,
	EmailDelivered,
	EmailFailed,
	EmailFailedBounced,
	EmailFailedQuarantined,
	EmailFailedFilteredSpam,
	EmailFailedInvalidFormat,
	EmailFailedTransientError,
	EmailFailedSuppressedRecipient,
	EmailFailedRecipientReserved,
	EmailFailedRecipientNotIdentified,
}

var lifecycleByName = func() map[string]ProcessingLifecycle {
	index := make(map[string]ProcessingLifecycle, len(processingLifecycles))
	for _, value := range processingLifecycles {
		index[strings.ToLower(string(value))] = value
	}
	return index
}()

// AllProcessingLifecycles returns the vocabulary in its canonical order.
func AllProcessingLifecycles() []ProcessingLifecycle {
	return append([]ProcessingLifecycle(nil), processingLifecycles...)
}

// ParseProcessingLifecycle matches case-insensitively and rejects anything
// outside the vocabulary.
func ParseProcessingLifecycle(raw string) (ProcessingLifecycle, bool) {
	value, ok := lifecycleByName[strings.ToLower(strings.TrimSpace(raw))]
	return value, ok
}

func (s ProcessingLifecycle) IsOrderLevel() bool {
	return strings.HasPrefix(string(s), "Order_")
}

// Channel reports the channel a delivery sub-state belongs to.
func (s ProcessingLifecycle) Channel() (Channel, bool) {
	switch {
	case strings.HasPrefix(string(s), "SMS_"):
		return ChannelSms, true
	case strings.HasPrefix(string(s), "Email_"):
		return ChannelEmail, true
	default:
		return "", false
	}
}

// IsFailure covers the generic failure and every failure reason.
func (s ProcessingLifecycle) IsFailure() bool {
	return strings.Contains(string(s), "_Failed")
}

// IsTerminal reports whether no further transition is expected.
func (s ProcessingLifecycle) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderSendConditionNotMet, OrderCancelled,
		SmsDelivered, EmailDelivered:
		return true
	}
	return s.IsFailure()
}

// Description is the human-readable text carried in status snapshots.
func (s ProcessingLifecycle) Description() string {
	switch s {
	case OrderRegistered:
		return "Order has been registered and is awaiting requested send time before processing."
	case OrderProcessing:
		return "Order processing is in progress."
	case OrderCompleted:
		return "Order processing is completed. All notifications have been generated."
	case OrderSendConditionNotMet:
		return "Order processing was stopped due to send condition not being met."
	case OrderCancelled:
		return "Order processing was stopped due to order being cancelled."
	case SmsNew, EmailNew:
		return "The notification has been created, but has not been picked up for processing yet."
	case SmsSending, EmailSending:
		return "The notification is being processed."
	case SmsAccepted:
		return "The SMS has been accepted by the gateway service and will be sent soon."
	case EmailSucceeded:
		return "The email has been accepted by the third party email service and will be sent soon."
	case SmsDelivered, EmailDelivered:
		return "The notification was successfully delivered to the recipient."
	case SmsFailedRecipientReserved, EmailFailedRecipientReserved:
		return "The recipient has reserved themselves from electronic communication."
	case SmsFailedRecipientNotIdentified, EmailFailedRecipientNotIdentified:
		return "The notification was not sent because the recipient could not be identified."
	}
	if s.IsFailure() {
		return "The notification was not delivered."
	}
	return ""
}
