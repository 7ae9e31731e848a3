package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

const (
	DefaultCurrency      = "USD"
	DefaultPaymentMethod = "Credit Card"
	Unknown              = "Unknown"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateCreateRequest checks the struct tags and the numeric contract of a
// submitted transaction.
func ValidateCreateRequest(req models.CreateTransactionRequest) error {
	if err := ValidateAmount(req.Amount); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return fromValidator(err)
	}
	return nil
}

// ValidateAmount rejects amounts that are not positive finite numbers.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return &ValidationError{
			Field:   "amount",
			Message: "must be a finite number",
		}
	}
	if amount <= 0 {
		return &ValidationError{
			Field:   "amount",
			Message: "must be positive",
		}
	}
	return nil
}

// BuildTransaction turns a validated request into a pending transaction with
// defaults applied. The caller assigns the identifier.
func BuildTransaction(req models.CreateTransactionRequest, now time.Time) (models.Transaction, error) {
	at := now
	if ts := SanitizeString(req.Timestamp); ts != "" {
		parsed, err := ValidateTimeString(ts)
		if err != nil {
			return models.Transaction{}, &ValidationError{Field: "timestamp", Message: "must be a valid RFC3339 timestamp"}
		}
		at = parsed
	}

	txn := models.Transaction{
		UserID:           SanitizeString(req.UserID),
		Amount:           req.Amount,
		Currency:         SanitizeString(req.Currency),
		MerchantName:     SanitizeString(req.MerchantName),
		MerchantCategory: SanitizeString(req.MerchantCategory),
		PaymentMethod:    SanitizeString(req.PaymentMethod),
		Location:         SanitizeString(req.Location),
		Country:          SanitizeString(req.Country),
		DeviceID:         SanitizeString(req.DeviceID),
		Timestamp:        at,
		Status:           models.StatusPending,
		CreatedAt:        now,
	}
	ApplyDefaults(&txn)
	return txn, nil
}

// ApplyDefaults fills absent descriptive fields so every transaction carries
// a currency, payment method, location, country and device.
func ApplyDefaults(txn *models.Transaction) {
	if txn.Currency == "" {
		txn.Currency = DefaultCurrency
	}
	txn.Currency = strings.ToUpper(txn.Currency)
	if txn.PaymentMethod == "" {
		txn.PaymentMethod = DefaultPaymentMethod
	}
	if txn.MerchantCategory == "" {
		txn.MerchantCategory = Unknown
	}
	if txn.Location == "" {
		txn.Location = txn.Country
	}
	if txn.Location == "" {
		txn.Location = Unknown
	}
	if txn.Country == "" {
		txn.Country = Unknown
	}
	if txn.DeviceID == "" && txn.UserID != "" {
		txn.DeviceID = "device_" + txn.UserID
	}
}

// ValidateScoreRequest guards the dry-run endpoint: the candidate and each
// history entry need a user, a positive finite amount and a timestamp.
func ValidateScoreRequest(req models.ScoreRequest) error {
	if err := validateScorable(req.Transaction, "transaction"); err != nil {
		return err
	}
	for i, h := range req.History {
		if err := validateScorable(h, fmt.Sprintf("history[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateScorable(txn models.Transaction, field string) error {
	if SanitizeString(txn.UserID) == "" {
		return &ValidationError{Field: field + ".user_id", Message: "is required"}
	}
	if err := ValidateAmount(txn.Amount); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Field = field + "." + ve.Field
		}
		return err
	}
	if txn.Timestamp.IsZero() {
		return &ValidationError{Field: field + ".timestamp", Message: "is required"}
	}
	return nil
}

// ValidateStatus checks an admin-supplied status value.
func ValidateStatus(s models.Status) error {
	if !s.Valid() {
		return &ValidationError{
			Field:   "status",
			Message: "must be one of pending, approved, flagged, blocked",
		}
	}
	return nil
}

// ValidateClassification checks a classification filter value.
func ValidateClassification(c models.Classification) error {
	if !c.Valid() {
		return &ValidationError{
			Field:   "classification",
			Message: "must be one of Safe, Suspicious, Fraudulent",
		}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}

func fromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "body", Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
