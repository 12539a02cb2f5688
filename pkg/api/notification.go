package api

type NotificationKind string

const (
	NotificationAccepted NotificationKind = "accepted"
	NotificationRejected NotificationKind = "rejected"
)

type Notification struct {
	Kind             NotificationKind
	RecipientName    string
	RecipientContext string
	Subject          string
	Body             string
}
