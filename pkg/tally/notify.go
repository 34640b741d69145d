package tally

// NotificationType is the severity of an advisory notification.
type NotificationType string

// Notification severities.
const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
)

// Notification is a fire-and-forget advisory message. It never affects
// control flow and its delivery is never awaited.
type Notification struct {
	Type     NotificationType
	Title    string
	Message  string
	Category string
}

// NotificationSink receives advisory notifications.
type NotificationSink interface {
	Notify(notification Notification)
}

// SinkFunc adapts a function to the NotificationSink interface.
type SinkFunc func(notification Notification)

// Notify implements NotificationSink.
func (f SinkFunc) Notify(notification Notification) {
	f(notification)
}

// Emit delivers a notification to a sink, silently dropping it when no
// sink is registered.
func Emit(sink NotificationSink, notification Notification) {
	if sink == nil {
		return
	}

	sink.Notify(notification)
}
