package models

import "time"

// Classification is the three-way verdict derived from a risk score.
type Classification string

const (
	ClassificationSafe       Classification = "Safe"
	ClassificationSuspicious Classification = "Suspicious"
	ClassificationFraudulent Classification = "Fraudulent"
)

func (c Classification) Valid() bool {
	switch c {
	case ClassificationSafe, ClassificationSuspicious, ClassificationFraudulent:
		return true
	}
	return false
}

// Status is the operational state of a transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusBlocked  Status = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusFlagged, StatusBlocked:
		return true
	}
	return false
}

// Transaction represents a single payment made by a user.
type Transaction struct {
	ID               string    `json:"transaction_id"`
	UserID           string    `json:"user_id"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	MerchantName     string    `json:"merchant_name"`
	MerchantCategory string    `json:"merchant_category"`
	PaymentMethod    string    `json:"payment_method"`
	Location         string    `json:"location"`
	Country          string    `json:"country"`
	DeviceID         string    `json:"device_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"` // RFC3339 timestamp

	Status        Status           `json:"status,omitempty"`
	FraudStatus   *FraudAssessment `json:"fraud_status,omitempty"`
	AdminNotes    string           `json:"admin_notes,omitempty"`
	AdminOverride bool             `json:"admin_override,omitempty"`
	UpdatedBy     string           `json:"updated_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at,omitempty"`
	UpdatedAt     *time.Time       `json:"updated_at,omitempty"`
}

// Place returns the location used for behavioural comparison.
func (t Transaction) Place() string {
	if t.Location != "" {
		return t.Location
	}
	return t.Country
}

// FraudAssessment is the outcome of scoring one transaction.
type FraudAssessment struct {
	Score          float64        `json:"score"` // 0-100, two decimals
	Classification Classification `json:"classification"`
	Reasons        []string       `json:"reasons"`
	Timestamp      time.Time      `json:"timestamp"`
}

// FraudLog is an append-only audit entry for a scoring decision or an admin override.
type FraudLog struct {
	ID             string         `json:"log_id"`
	TransactionID  string         `json:"transaction_id"`
	UserID         string         `json:"user_id"`
	RiskScore      *float64       `json:"risk_score,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Reasons        []string       `json:"reasons,omitempty"`
	Action         string         `json:"action"`
	AdminID        string         `json:"admin_id,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Summary aggregates classification counts over a set of scored transactions.
type Summary struct {
	Total      int    `json:"total"`
	Fraudulent int    `json:"fraudulent"`
	Suspicious int    `json:"suspicious"`
	Safe       int    `json:"safe"`
	FraudRate  string `json:"fraud_rate"`
}

// CreateTransactionRequest represents the request body for submitting a transaction.
type CreateTransactionRequest struct {
	UserID           string  `json:"user_id" validate:"required,max=128"`
	Amount           float64 `json:"amount" validate:"required,gt=0"`
	Currency         string  `json:"currency" validate:"omitempty,len=3"`
	MerchantName     string  `json:"merchant_name" validate:"required,max=256"`
	MerchantCategory string  `json:"merchant_category" validate:"required,max=128"`
	PaymentMethod    string  `json:"payment_method" validate:"max=64"`
	Location         string  `json:"location" validate:"max=256"`
	Country          string  `json:"country" validate:"max=128"`
	DeviceID         string  `json:"device_id" validate:"max=256"`
	Timestamp        string  `json:"timestamp"`
}

// ScoreRequest asks for a dry-run assessment against a caller-supplied history.
type ScoreRequest struct {
	Transaction Transaction   `json:"transaction"`
	History     []Transaction `json:"history"`
}

// StatusUpdateRequest represents an admin change of operational status.
type StatusUpdateRequest struct {
	Status     Status `json:"status"`
	AdminID    string `json:"admin_id"`
	AdminNotes string `json:"admin_notes"`
}

// OverrideRequest carries the admin identity and notes for approve/block.
type OverrideRequest struct {
	AdminID    string `json:"admin_id"`
	AdminNotes string `json:"admin_notes"`
}

// TransactionListResponse wraps a page of transactions.
type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}

// FraudLogListResponse wraps a page of audit entries.
type FraudLogListResponse struct {
	Logs  []FraudLog `json:"logs"`
	Count int        `json:"count"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
