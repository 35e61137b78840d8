package domain

import "time"

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

// Investment is a fixed-term stake. ReturnBps is the return rate in basis
// points (2500 = 25%).
type Investment struct {
	InvestmentID     string           `json:"id" dynamodbav:"investment_id"`
	UserID           string           `json:"user_id" dynamodbav:"user_id"`
	AmountCents      int64            `json:"-" dynamodbav:"amount_cents"`
	DurationDays     int              `json:"duration" dynamodbav:"duration_days"`
	ReturnBps        int64            `json:"-" dynamodbav:"return_bps"`
	TotalReturnCents int64            `json:"-" dynamodbav:"total_return_cents"`
	Status           InvestmentStatus `json:"status" dynamodbav:"status"`
	Reference        string           `json:"reference" dynamodbav:"reference"`
	StartDate        time.Time        `json:"start_date" dynamodbav:"start_date"`
	EndDate          time.Time        `json:"end_date" dynamodbav:"end_date,unixtime"`
	CreatedAt        time.Time        `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time        `json:"updated" dynamodbav:"updated_at"`
}

// Profit is the amount earned on top of the principal at maturity.
func (i *Investment) Profit() int64 {
	return ApplyBasisPoints(i.AmountCents, i.ReturnBps)
}

type CreateInvestmentRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0,cents"`
	Duration int     `json:"duration" validate:"required,oneof=30 60 90 180"`
}
