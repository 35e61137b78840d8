package domain

import "time"

type CryptoWallets struct {
	BTC string `json:"btc,omitempty" dynamodbav:"btc,omitempty"`
	ETH string `json:"eth,omitempty" dynamodbav:"eth,omitempty"`
	SOL string `json:"sol,omitempty" dynamodbav:"sol,omitempty"`
	XMR string `json:"xmr,omitempty" dynamodbav:"xmr,omitempty"`
}

type User struct {
	UserID       string         `json:"id" dynamodbav:"user_id"`
	Username     string         `json:"username" dynamodbav:"username"`
	Email        string         `json:"email" dynamodbav:"email"`
	PasswordHash string         `json:"-" dynamodbav:"password_hash"`
	Role         string         `json:"role" dynamodbav:"role"`
	FullName     string         `json:"full_name,omitempty" dynamodbav:"full_name"`
	Phone        *string        `json:"phone,omitempty" dynamodbav:"phone"`
	Address      string         `json:"address,omitempty" dynamodbav:"address"`
	Wallets      *CryptoWallets `json:"crypto_wallets,omitempty" dynamodbav:"crypto_wallets,omitempty"`
	BalanceCents int64          `json:"-" dynamodbav:"balance_cents"`
	Enable       bool           `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time      `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time      `json:"updated" dynamodbav:"updated_at"`
}

type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
}

type UpdateProfileRequest struct {
	FullName *string        `json:"full_name"`
	Phone    *string        `json:"phone" validate:"omitempty,e164"`
	Address  *string        `json:"address"`
	Wallets  *CryptoWallets `json:"crypto_wallets"`
}
