package httpapi

import "time"

const defaultMaxBodyBytes int64 = 20 << 20

// maxBodyBytes caps request bodies on the verify route.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes sets the request body limit; non-positive restores 20 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// verifyTimeout bounds a whole verification, queueing included.
// Zero means no additional timeout beyond the upstream retry budget.
var verifyTimeout time.Duration

// SetVerifyTimeout sets the per-request verification timeout (0 disables).
func SetVerifyTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	verifyTimeout = d
}

// CORS configuration. If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty method
// and header lists fall back to permissive defaults.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
