package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Seats    []int
	Err      error
}

func (e ConflictError) Error() string {
	if len(e.Seats) > 0 {
		parts := make([]string, 0, len(e.Seats))
		for _, n := range e.Seats {
			parts = append(parts, strconv.Itoa(n))
		}
		return fmt.Sprintf("seat already taken: %s", strings.Join(parts, ", "))
	}
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// PaymentGatewayError reports that a mobile-money provider refused or failed
// to start a payment. Nothing is persisted when it is returned.
type PaymentGatewayError struct {
	Provider string
	Err      error
}

func (e PaymentGatewayError) Error() string {
	if e.Provider == "" {
		return "payment provider error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s payment initiation failed", e.Provider)
	}
	return fmt.Sprintf("%s payment initiation failed: %v", e.Provider, e.Err)
}

func (e PaymentGatewayError) Unwrap() error { return e.Err }

type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsPaymentGateway(err error) bool {
	var target PaymentGatewayError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}

// ConflictSeats returns the seat numbers carried by a ConflictError, if any.
func ConflictSeats(err error) []int {
	var target ConflictError
	if errors.As(err, &target) {
		return target.Seats
	}
	return nil
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
