package variant

import "fmt"

// ConfigurationError reports install-directory evidence that contradicts the
// caller's options, or a request the chosen variant cannot honor. It is never
// retried; the user has to fix the input.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}
