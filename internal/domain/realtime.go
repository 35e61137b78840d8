package domain

import "time"

// Real-time message types pushed to connected clients.
const (
	RealtimeNotification       = "notification"
	RealtimeUpdateNotification = "UPDATE_NOTIFICATION"
	RealtimeDeleteNotification = "DELETE_NOTIFICATION"
	RealtimeMarkAllRead        = "MARK_ALL_READ"
	RealtimeTransactionUpdate  = "transaction_update"
)

// RealtimeNotificationBody is the client-facing shape of a pushed notification.
type RealtimeNotificationBody struct {
	ID          string               `json:"id,omitempty"`
	Type        NotificationCategory `json:"type"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	Timestamp   time.Time            `json:"timestamp"`
	ReferenceID string               `json:"referenceId,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
}

// RealtimeMessage is the envelope written to a WebSocket. Only the fields
// relevant to Type are set.
type RealtimeMessage struct {
	Type           string                    `json:"type"`
	Notification   *RealtimeNotificationBody `json:"notification,omitempty"`
	NotificationID string                    `json:"notificationId,omitempty"`
	Read           *bool                     `json:"read,omitempty"`
	Transaction    *TransactionUpdate        `json:"transaction,omitempty"`
}

type TransactionUpdate struct {
	Reference string            `json:"reference"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Amount    string            `json:"amount"`
}
