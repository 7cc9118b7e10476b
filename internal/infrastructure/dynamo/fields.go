package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldActive        = "active"
	fieldVerified      = "verified"
	fieldPendingOTP    = "pending_otp"
	fieldLoginAttempts = "login_attempts"
	fieldLockUntil     = "lock_until"
	fieldLastLoginAt   = "last_login_at"
	fieldScanCount     = "scan_count"
	fieldLastScannedAt = "last_scanned_at"
	fieldValid         = "valid"
)
