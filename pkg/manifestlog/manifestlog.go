// Package manifestlog constructs the structured loggers the build and
// preflight pipelines take as an explicit constructor argument — never a
// package-level global, matching the teacher's convention of passing
// *zap.Logger into every component that needs one.
package manifestlog

import "go.uber.org/zap"

// NewProduction builds a JSON-encoded, info-level zap logger suitable for
// the build pipeline and preflight validator.
func NewProduction() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewDevelopment builds a human-readable, debug-level zap logger for local
// runs of the manifestctl demonstration CLI.
func NewDevelopment() (*zap.Logger, error) {
	return zap.NewDevelopment()
}
