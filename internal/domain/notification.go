package domain

import "time"

type NotificationCategory string

const (
	CategoryInvestment  NotificationCategory = "investment"
	CategoryWithdrawal  NotificationCategory = "withdrawal"
	CategoryReferral    NotificationCategory = "referral"
	CategorySystem      NotificationCategory = "system"
	CategoryTransaction NotificationCategory = "transaction"
	CategorySupport     NotificationCategory = "support"
	CategoryProfile     NotificationCategory = "profile"
)

func (c NotificationCategory) Valid() bool {
	switch c {
	case CategoryInvestment, CategoryWithdrawal, CategoryReferral, CategorySystem,
		CategoryTransaction, CategorySupport, CategoryProfile:
		return true
	}
	return false
}

// NotificationLinks are back-references to the domain records a notification
// was raised for. They never imply ownership.
type NotificationLinks struct {
	TransactionID string `json:"transaction_id,omitempty" dynamodbav:"transaction_id,omitempty"`
	InvestmentID  string `json:"investment_id,omitempty" dynamodbav:"investment_id,omitempty"`
	TicketID      string `json:"ticket_id,omitempty" dynamodbav:"ticket_id,omitempty"`
	AdminInviteID string `json:"admin_invite_id,omitempty" dynamodbav:"admin_invite_id,omitempty"`
}

// Notification is owned by exactly one user. NotificationID is a ULID, so
// ordering by id is ordering by creation time with ties broken by id.
type Notification struct {
	NotificationID string               `json:"id" dynamodbav:"notification_id"`
	UserID         string               `json:"user_id" dynamodbav:"user_id"`
	Category       NotificationCategory `json:"type" dynamodbav:"category"`
	Title          string               `json:"title" dynamodbav:"title"`
	Message        string               `json:"message" dynamodbav:"message"`
	ReferenceID    string               `json:"reference_id,omitempty" dynamodbav:"reference_id,omitempty"`
	Metadata       map[string]any       `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	Links          *NotificationLinks   `json:"links,omitempty" dynamodbav:"links,omitempty"`
	Read           bool                 `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time            `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time            `json:"updated" dynamodbav:"updated_at"`
}
