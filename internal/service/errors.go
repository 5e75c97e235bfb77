package service

import (
	"github.com/dukerupert/tabletill/internal/domain"
)

// Session errors
var (
	ErrSessionNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "Session not found"}
	ErrSessionExpired  = &domain.Error{Code: domain.EGONE, Message: "Session has expired"}
	ErrSessionClosed   = &domain.Error{Code: domain.ECONFLICT, Message: "Session has already been committed"}
)

// Order editing errors
var (
	ErrItemNotFound     = &domain.Error{Code: domain.ENOTFOUND, Message: "Order item not found"}
	ErrInvalidQuantity  = &domain.Error{Code: domain.EINVALID, Message: "Quantity must be greater than 0"}
	ErrNegativeQuantity = &domain.Error{Code: domain.EINVALID, Message: "Quantity cannot be negative"}
	ErrInvalidPercent   = &domain.Error{Code: domain.EINVALID, Message: "Discount percent must be between 0 and 100"}
	ErrEmptyOrder       = &domain.Error{Code: domain.EINVALID, Message: "Order has no items"}
)

// opError attaches op to a sentinel while keeping it matchable with errors.Is.
func opError(op string, sentinel *domain.Error) error {
	return domain.WrapError(sentinel, sentinel.Code, op, sentinel.Message)
}
