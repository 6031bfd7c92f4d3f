package goAccount

// LastAccessTrackingEnabled reports whether last-access-time updates
// are enabled for the given account under the current policy snapshot.
func (e *Engine) LastAccessTrackingEnabled(uid, email string) bool {
	if e == nil {
		return false
	}
	return e.policySnapshot().LastAccessTrackingEnabled(uid, email)
}

// SigninUnblockAllowed reports whether the signin unblock flow may be
// offered to the given account under the current policy snapshot.
func (e *Engine) SigninUnblockAllowed(uid, email string) bool {
	if e == nil {
		return false
	}
	return e.policySnapshot().SigninUnblockEnabled(uid, email)
}
