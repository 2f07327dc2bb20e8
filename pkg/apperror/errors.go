package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Share Ledger (LEDGER) ----

func ErrInsufficientBalance() *AppError {
	return New("LEDGER_001", "Insufficient share balance", http.StatusUnprocessableEntity)
}

func ErrInvalidAmount() *AppError {
	return New("LEDGER_002", "Invalid amount", http.StatusBadRequest)
}

func ErrAlreadyIssued() *AppError {
	return New("LEDGER_003", "Shares already issued for this asset", http.StatusConflict)
}

func ErrArithmeticOverflow(err error) *AppError {
	return Wrap("LEDGER_004", "Arithmetic overflow", http.StatusUnprocessableEntity, err)
}

func ErrNotIssued() *AppError {
	return New("LEDGER_005", "Shares have not been issued for this asset", http.StatusConflict)
}

// ---- Claims (CLAIM) ----

func ErrNoUnclaimedDividends() *AppError {
	return New("CLAIM_001", "No unclaimed dividends", http.StatusConflict)
}

// ---- Issuance Sale (SALE) ----

func ErrSaleNotActive() *AppError {
	return New("SALE_001", "Sale is not active", http.StatusConflict)
}

func ErrInsufficientInventory() *AppError {
	return New("SALE_002", "Not enough shares remaining in sale", http.StatusConflict)
}

func ErrNothingToWithdraw() *AppError {
	return New("SALE_003", "No proceeds to withdraw", http.StatusConflict)
}

func ErrSaleAlreadyOpen() *AppError {
	return New("SALE_004", "A sale already exists for this asset", http.StatusConflict)
}

func ErrSaleStillActive() *AppError {
	return New("SALE_005", "Sale is still active", http.StatusConflict)
}

// ---- Payment Asset (PAY) ----

func ErrPaymentFailed(err error) *AppError {
	return Wrap("PAY_001", "Payment transfer failed", http.StatusPaymentRequired, err)
}

// ---- Asset Registry (ASSET) ----

func ErrAssetInactive() *AppError {
	return New("ASSET_001", "Asset is inactive", http.StatusConflict)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "Caller lacks the required capability", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Request (REQ / RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
