package model

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
	NotificationInfo    NotificationLevel = "info"
)

// Notification is a toast shown once on the next rendered page.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
