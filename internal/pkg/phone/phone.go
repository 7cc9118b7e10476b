package phone

import "regexp"

var (
	e164Re   = regexp.MustCompile(`^\+\d{10,15}$`)
	indianRe = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// Normalize converts a bare 10-digit Indian mobile number to E.164 by adding
// the +91 prefix. Numbers already in E.164 pass through unchanged; anything
// else is returned as-is and left to the delivery provider to reject.
func Normalize(mobile string) string {
	if e164Re.MatchString(mobile) {
		return mobile
	}
	if indianRe.MatchString(mobile) {
		return "+91" + mobile
	}
	return mobile
}

// Mask obscures the middle of a 10-digit mobile number, keeping the first 3
// and last 2 digits visible. Shorter or non-standard values are fully masked
// except the last 2 characters.
func Mask(mobile string) string {
	if len(mobile) == 10 {
		return mobile[:3] + "*****" + mobile[8:]
	}
	if len(mobile) <= 2 {
		return mobile
	}
	masked := make([]byte, len(mobile)-2)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + mobile[len(mobile)-2:]
}
