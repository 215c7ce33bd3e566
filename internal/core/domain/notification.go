package domain

// Severity grades a notification for the ops channel.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is the payload carried by notification.* events.
type Notification struct {
	Kind      string
	Severity  Severity
	Subject   string
	Text      string
	Recipient string
}

// NotificationFromEvent reads the standard notification fields from a notification.* event.
func NotificationFromEvent(e Event) Notification {
	return Notification{
		Kind:      e.Type,
		Severity:  Severity(e.Payload.String("severity", string(SeverityInfo))),
		Subject:   e.Payload.String("subject", e.Type),
		Text:      e.Payload.String("text", ""),
		Recipient: e.Payload.String("recipient", e.AggregateID),
	}
}
