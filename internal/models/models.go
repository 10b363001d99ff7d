// Package models defines the form payloads accepted by the web handlers.
package models

// SignUpForm is the signup page submission. The password floor matches
// the provider's own minimum so obviously short passwords never leave
// the application.
type SignUpForm struct {
	FullName string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required,min=6"`
}

// SignInForm is the login page submission.
type SignInForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}
