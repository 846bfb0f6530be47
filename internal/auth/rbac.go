package auth

// Authorize grants access when the claims' role is at or above required.
// It has no side effects and consults nothing but its arguments.
func Authorize(claims Claims, required Role) error {
	if !claims.Role.Satisfies(required) {
		return ErrForbidden
	}
	return nil
}
