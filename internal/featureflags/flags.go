package featureflags

import (
	"os"
	"strings"
)

// Flags read by the identity layer
const (
	// IdentityDiagnostics turns on logging of loader failures that
	// otherwise degrade silently to anonymous.
	IdentityDiagnostics = "identity_diagnostics"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
