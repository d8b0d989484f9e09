package security

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Validator enforces boundary limits on product data and quantities before
// they reach the store.
type Validator struct {
	maxLineQuantity int
	maxTextLength   int
}

// NewValidator creates a new security validator
func NewValidator(maxLineQuantity, maxTextLength int) *Validator {
	slog.Info("security_validator_init",
		"max_line_quantity", maxLineQuantity,
		"max_text_length", maxTextLength)

	return &Validator{
		maxLineQuantity: maxLineQuantity,
		maxTextLength:   maxTextLength,
	}
}

// ValidateImageURL accepts absolute http(s) URLs only. Anything else
// (javascript:, data:, file:, relative paths) is rejected.
func (v *Validator) ValidateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		slog.Warn("security_image_url_rejected", "url", raw, "reason", "unparseable")
		return fmt.Errorf("security: image url unparseable: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		slog.Warn("security_image_url_rejected", "url", raw, "reason", "scheme", "scheme", u.Scheme)
		return fmt.Errorf("security: image url scheme %q not allowed", u.Scheme)
	}

	if u.Host == "" {
		slog.Warn("security_image_url_rejected", "url", raw, "reason", "missing_host")
		return fmt.Errorf("security: image url has no host: %s", raw)
	}
	return nil
}

// ValidateQuantity checks a requested line quantity against the per-line
// ceiling. A ceiling of zero or less disables the check.
func (v *Validator) ValidateQuantity(quantity int) error {
	if v.maxLineQuantity > 0 && quantity > v.maxLineQuantity {
		slog.Error("security_quantity_exceeded", "quantity", quantity, "max_line_quantity", v.maxLineQuantity)
		return fmt.Errorf("security: quantity %d exceeds max %d per line", quantity, v.maxLineQuantity)
	}
	return nil
}

// ClampText trims whitespace and truncates s to the configured maximum rune count.
func (v *Validator) ClampText(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= v.maxTextLength {
		return s
	}
	runes := []rune(s)
	slog.Warn("security_text_truncated", "length", len(runes), "max_text_length", v.maxTextLength)
	return string(runes[:v.maxTextLength])
}

// MaxLineQuantity returns the per-line quantity ceiling, 0 meaning unlimited.
func (v *Validator) MaxLineQuantity() int {
	return v.maxLineQuantity
}
