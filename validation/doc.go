// Package validation checks declarations and configuration before they are
// used.
//
// Struct tag validation uses go-playground/validator. Field names in
// messages are snake_case:
//
//	type Method struct {
//	    Name    string        `validate:"required"`
//	    Timeout time.Duration `validate:"gte=0"`
//	}
//	err := validation.Validate(m, errors.ErrCodeDeclaration)
//
// Checks that tags cannot express are collected programmatically:
//
//	v := validation.New()
//	v.Custom(count <= 1, "params", "at most one work dir parameter")
//	if appErr := v.Validate(errors.ErrCodeDeclaration, "method run"); appErr != nil {
//	    return appErr
//	}
package validation
