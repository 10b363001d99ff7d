// Package eligibility restricts account access to students of one
// institution by checking the email address suffix. The check is pure and
// runs before any call to the identity provider.
package eligibility

import "strings"

// Domain is the only email domain allowed to sign up or sign in.
const Domain = "@edu.escp.eu"

// SignUpRejectionMessage is shown when an ineligible email is submitted
// on the signup form.
const SignUpRejectionMessage = "Only ESCP students can create an account. Please use your @edu.escp.eu email address."

// SignInRejectionMessage is shown when an ineligible email is submitted
// on the login form.
const SignInRejectionMessage = "Only ESCP students can access this platform. Please use your @edu.escp.eu email address."

// Normalize returns the canonical form of an email address: surrounding
// whitespace removed and all characters lower-cased. The normalized form
// is what gets sent to the identity provider.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEligible reports whether the normalized form of email belongs to the
// institutional domain.
func IsEligible(email string) bool {
	return strings.HasSuffix(Normalize(email), Domain)
}
