package domain

// Principal is what a successful login reveals about an account.
type Principal struct {
	Username string
	IsAdmin  bool
}

// PasswordMatcher compares a stored password value against a login attempt.
type PasswordMatcher func(stored, attempt string) bool

// ExactMatch compares passwords verbatim.
func ExactMatch(stored, attempt string) bool {
	return stored == attempt
}
