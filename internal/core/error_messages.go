package core

// error_messages.go maps technical errors to user-facing messages with codes
// support staff can look up.
//
// Codes by category:
//
//	IMP001-IMP099  Import errors (format, malformed input, columns, file size)
//	SES001-SES099  Session errors (apply in flight, no session, unknown row)
//	INV001-INV099  Inventory errors (unknown product, invalid quantity)
//	DB001-DB099    Database errors (constraints, connectivity, timeouts)
//	AUTH001        Sync credential rejected
//	RATE001        Request throttled
//	ERR000         Fallback; the original error is in the logs
//
// Sentinel errors are matched with errors.Is before any string pattern is
// tried, so wrapping a sentinel never changes its code. When an error carries
// a hint (errors.WithHint) the hint replaces the default action text.

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrUnsupportedFormat, UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv, .tsv, .txt, .xlsx or .xlsm file",
		Code:    "IMP001",
	}},
	{ErrMalformedInput, UserMessage{
		Message: "The file could not be read",
		Action:  "Check that the file has a header row and at least one data row",
		Code:    "IMP002",
	}},
	{ErrUnresolvableColumns, UserMessage{
		Message: "Could not find product name or quantity columns",
		Action:  "Name the columns e.g. \"Product Name\" and \"Quantity\", or download a template",
		Code:    "IMP003",
	}},
	{ErrApplyInFlight, UserMessage{
		Message: "An import is already being applied",
		Action:  "Wait for the current import to finish and try again",
		Code:    "SES001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "No import is in progress",
		Action:  "Upload a stock report to start a new import",
		Code:    "SES002",
	}},
	{ErrInvalidTransition, UserMessage{
		Message: "That action is not available right now",
		Action:  "Refresh the page and try again",
		Code:    "SES003",
	}},
	{ErrRowNotFound, UserMessage{
		Message: "Row not found in the current import",
		Action:  "Refresh the page; the import may have been replaced",
		Code:    "SES004",
	}},
	{ErrTooManyApplies, UserMessage{
		Message: "System is busy applying other imports",
		Action:  "Please wait a moment and try again",
		Code:    "SES005",
	}},
	{ErrProductNotFound, UserMessage{
		Message: "Product not found",
		Action:  "Verify the product exists in your catalog",
		Code:    "INV001",
	}},
	{ErrInvalidQuantity, UserMessage{
		Message: "Quantity must be a whole number of zero or more",
		Action:  "Correct the quantity and try again",
		Code:    "INV002",
	}},
	{ErrInventoryNotFound, UserMessage{
		Message: "Stock record not found",
		Action:  "Refresh the catalog and try again",
		Code:    "INV003",
	}},
	{ErrProfileNotFound, UserMessage{
		Message: "Unknown template",
		Action:  "Choose the standard or accounting template",
		Code:    "IMP006",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Import size (IMP004)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or columns and upload again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a stock report to upload",
			Code:    "IMP005",
		},
	},

	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be processed",
			Action:  "Check the request fields and try again",
			Code:    "REQ001",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Refresh the catalog and try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate product names in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "The product may have been deleted; refresh and try again",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB006)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Auth and throttling
	// =========================================================================
	{
		pattern: "invalid sync key",
		msg: UserMessage{
			Message: "Sync credential rejected",
			Action:  "Check the API key configured for this integration",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	msg, ok := matchSentinel(err)
	if !ok {
		msg, ok = matchPattern(err)
	}
	if !ok {
		return defaultMessage
	}

	if hint := errors.FlattenHints(err); hint != "" {
		msg.Action = hint
	}
	return msg
}

func matchSentinel(err error) (UserMessage, bool) {
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg, true
		}
	}
	return UserMessage{}, false
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
