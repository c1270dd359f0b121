// Package apperr holds the closed set of error codes surfaced by the service
// layer. Handlers translate codes into transport responses.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Code string

const (
	CodeValidation        Code = "validation"
	CodeEmptyCart         Code = "empty_cart"
	CodeNotFound          Code = "not_found"
	CodeUnauthorized      Code = "unauthorized"
	CodeAccessDenied      Code = "access_denied"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeGateway           Code = "gateway"
	CodeInternal          Code = "internal"
)

// Error is a coded error. Details carries machine-readable context returned to
// the caller next to the message.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. Wrapping an already coded error keeps the inner code.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first coded error in err's chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// As returns the coded error in err's chain, if any.
func As(err error) (*Error, bool) {
	var coded *Error
	ok := errors.As(err, &coded)
	return coded, ok
}

func Is(err error, code Code) bool {
	coded, ok := As(err)
	return ok && coded.Code == code
}

func NotFound(what string) *Error {
	return Newf(CodeNotFound, "%s not found", what)
}

func AccessDenied() *Error {
	return New(CodeAccessDenied, "access denied")
}

func InsufficientStock(productID int64, requested, available int) *Error {
	return &Error{
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", productID, requested, available),
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
			"shortfall":  requested - available,
		},
	}
}

func InvalidTransition(from, to string, allowed []string) *Error {
	allowedText := "none"
	if len(allowed) > 0 {
		allowedText = strings.Join(allowed, ", ")
	}
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move order from %s to %s (allowed: %s)", from, to, allowedText),
		Details: map[string]any{
			"from":    from,
			"target":  to,
			"allowed": allowed,
		},
	}
}

func ExceedsRefundable(requested, refundable decimal.Decimal) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf("refund amount %s exceeds refundable amount %s", requested.StringFixed(2), refundable.StringFixed(2)),
		Details: map[string]any{
			"requested":      requested.StringFixed(2),
			"max_refundable": refundable.StringFixed(2),
		},
	}
}

func Gateway(err error, msg string) error {
	return &Error{Code: CodeGateway, Message: msg, Err: err}
}
