package falsepositive

import (
	"errors"
	"fmt"
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("falsepositive: invalid thresholds")

// Thresholds are the tunable limits of the structural checks. The
// defaults were chosen empirically and are exposed through configuration
// rather than hard-coded.
type Thresholds struct {
	// MinTokenLength is the shortest token or API key that keeps Medium+
	// confidence.
	MinTokenLength int `yaml:"min_token_length"`
	// MinTokenEntropy is the lowest Shannon entropy, in bits per
	// character, a token may have before it is demoted.
	MinTokenEntropy float64 `yaml:"min_token_entropy"`
	// MinTraversalDepth is how many "../" segments a plain traversal
	// needs to keep Medium+ confidence.
	MinTraversalDepth int `yaml:"min_traversal_depth"`
	// CardMinDigits and CardMaxDigits bound plausible card numbers.
	CardMinDigits int `yaml:"card_min_digits"`
	CardMaxDigits int `yaml:"card_max_digits"`
	// MinPasswordLength is the shortest value treated as a real password.
	MinPasswordLength int `yaml:"min_password_length"`
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTokenLength:    20,
		MinTokenEntropy:   3.0,
		MinTraversalDepth: 2,
		CardMinDigits:     13,
		CardMaxDigits:     19,
		MinPasswordLength: 4,
	}
}

// Validate reports inconsistent limits.
func (t Thresholds) Validate() error {
	switch {
	case t.MinTokenLength < 1:
		return fmt.Errorf("%w: min_token_length must be positive", ErrInvalidThresholds)
	case t.MinTokenEntropy < 0:
		return fmt.Errorf("%w: min_token_entropy must not be negative", ErrInvalidThresholds)
	case t.MinTraversalDepth < 1:
		return fmt.Errorf("%w: min_traversal_depth must be positive", ErrInvalidThresholds)
	case t.CardMinDigits < 1 || t.CardMaxDigits < t.CardMinDigits:
		return fmt.Errorf("%w: card digit bounds %d..%d", ErrInvalidThresholds, t.CardMinDigits, t.CardMaxDigits)
	case t.MinPasswordLength < 1:
		return fmt.Errorf("%w: min_password_length must be positive", ErrInvalidThresholds)
	}
	return nil
}
