// Package validation provides common validation utilities for configuration
// parameters across pipesim.
//
// Scalar helpers (ValidatePositive, ValidateNonNegative, ValidateNotEmpty)
// cover single values. Struct runs go-playground/validator tag checks and
// converts each failure into an *errors.ValidationError named after the
// field's json key, so messages line up with configuration keys.
package validation
