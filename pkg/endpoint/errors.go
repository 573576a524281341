package endpoint

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidParameter is matched by a ValidationError.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnresolvedRouteParam is matched by a RouteError.
	ErrUnresolvedRouteParam = errors.New("unresolved route parameter")
)

// ValidationError reports parameter names an endpoint does not accept.
type ValidationError struct {
	// Invalid holds the rejected names in input order.
	Invalid []string
	// Allowed holds every accepted name: whitelist first, then route params.
	Allowed []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(quoteList(e.Invalid))
	if len(e.Invalid) == 1 {
		b.WriteString(" is not a valid parameter. ")
	} else {
		b.WriteString(" are not valid parameters. ")
	}
	if len(e.Allowed) == 0 {
		b.WriteString("This endpoint accepts no parameters")
	} else {
		b.WriteString("Allowed parameters are ")
		b.WriteString(quoteList(e.Allowed))
	}
	return b.String()
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// RouteError reports route parameters that were never set when a URI was
// resolved strictly.
type RouteError struct {
	Template string
	Missing  []string
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return "route parameters " + quoteList(e.Missing) + " are not set for " + e.Template
}

// Is implements errors.Is support.
func (e *RouteError) Is(target error) bool {
	return target == ErrUnresolvedRouteParam
}

// IsValidationError checks if an error is a parameter validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return strings.Join(quoted, ", ")
}
