// Package validator validates request structs declared with `validate` tags.
//
// Business code depends on the Validator interface; V10Validator is the
// go-playground/validator implementation with English messages and the
// otpcode rule.
package validator
