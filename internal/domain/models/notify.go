package models

import "time"

// NotifyType classifies an event
type NotifyType string

const (
	// NotifyError reports a failure
	NotifyError NotifyType = "error"
	// NotifyUploadCompleted is emitted after a bulk write is committed
	NotifyUploadCompleted NotifyType = "upload_completed"
	// NotifyUploadFailed is emitted when a bulk write stops on error
	NotifyUploadFailed NotifyType = "upload_failed"
	// NotifyDeleted is emitted after a resource removal
	NotifyDeleted NotifyType = "deleted"
)

// Notify is an append-only event attached to a resource name
type Notify struct {
	Target    string
	Type      NotifyType
	Msg       *string
	CreatedAt time.Time
}

// NewNotify creates a notify stamped with the current time
func NewNotify(target string, t NotifyType, msg string) Notify {
	n := Notify{
		Target:    target,
		Type:      t,
		CreatedAt: time.Now().UTC(),
	}
	if msg != "" {
		n.Msg = &msg
	}
	return n
}

// ParseNotifyType checks a notify type name
func ParseNotifyType(s string) (NotifyType, bool) {
	switch t := NotifyType(s); t {
	case NotifyError, NotifyUploadCompleted, NotifyUploadFailed, NotifyDeleted:
		return t, true
	default:
		return "", false
	}
}
