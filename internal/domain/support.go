package domain

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

type TicketReply struct {
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Message     string    `json:"message" dynamodbav:"message"`
	Attachments []string  `json:"attachments,omitempty" dynamodbav:"attachments,omitempty"`
	Timestamp   time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

type Ticket struct {
	TicketID    string        `json:"id" dynamodbav:"ticket_id"`
	UserID      string        `json:"user_id" dynamodbav:"user_id"`
	Subject     string        `json:"subject" dynamodbav:"subject"`
	Message     string        `json:"message" dynamodbav:"message"`
	Status      TicketStatus  `json:"status" dynamodbav:"status"`
	Attachments []string      `json:"attachments" dynamodbav:"attachments"`
	Replies     []TicketReply `json:"replies" dynamodbav:"replies"`
	AssignedTo  string        `json:"assigned_to,omitempty" dynamodbav:"assigned_to,omitempty"`
	IsPriority  bool          `json:"is_priority" dynamodbav:"is_priority"`
	CreatedAt   time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time     `json:"updated" dynamodbav:"updated_at"`
}

type CreateTicketRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

type ReplyTicketRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

type UpdateTicketStatusRequest struct {
	Status TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}
