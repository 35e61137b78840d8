package domain

import "time"

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxInvestment TransactionType = "investment"
	TxReturn     TransactionType = "return"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

type CryptoDetails struct {
	Currency      string  `json:"type" dynamodbav:"currency"`
	Amount        float64 `json:"amount,omitempty" dynamodbav:"amount,omitempty"`
	WalletAddress string  `json:"wallet_address" dynamodbav:"wallet_address"`
	PaymentURL    string  `json:"payment_url,omitempty" dynamodbav:"payment_url,omitempty"`
}

// Transaction is a ledger entry. Reference is unique: for deposits it is the
// gateway payment id.
type Transaction struct {
	TransactionID string            `json:"id" dynamodbav:"transaction_id"`
	UserID        string            `json:"user_id" dynamodbav:"user_id"`
	Type          TransactionType   `json:"type" dynamodbav:"type"`
	AmountCents   int64             `json:"-" dynamodbav:"amount_cents"`
	Status        TransactionStatus `json:"status" dynamodbav:"status"`
	Reference     string            `json:"reference" dynamodbav:"reference"`
	Crypto        *CryptoDetails    `json:"crypto_details,omitempty" dynamodbav:"crypto_details,omitempty"`
	CreatedAt     time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time         `json:"updated" dynamodbav:"updated_at"`
}

type DepositRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0,lte=1000000,cents"`
}

type WithdrawalRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0,cents"`
	CryptoType    string  `json:"crypto_type" validate:"required,oneof=BTC ETH SOL XMR"`
	WalletAddress string  `json:"wallet_address" validate:"required,min=16,max=128"`
}

type SettleWithdrawalRequest struct {
	Status TransactionStatus `json:"status" validate:"required,oneof=completed failed"`
}
