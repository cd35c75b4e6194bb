package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateSearchTerm rejects empty (or whitespace-only) search terms and
// terms containing control characters.
func ValidateSearchTerm(term string) error {
	if strings.TrimSpace(term) == "" {
		return New(ErrCodeInvalidInput, "no term was given")
	}
	for _, r := range term {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search term contains invalid control characters")
		}
	}
	return nil
}

var countryCodeRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)

// ValidateCountryCode checks the shape of a two-letter country code.
// Whether the storefront exists is decided by the market table.
func ValidateCountryCode(code string) error {
	if !countryCodeRegex.MatchString(code) {
		return New(ErrCodeInvalidCountry, "country code not found for %s", strings.ToUpper(code))
	}
	return nil
}

// bundleIDRegex matches reverse-DNS bundle identifiers (e.g. com.example.App).
var bundleIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)+$`)

// ValidateBundleID validates a textual bundle identifier.
func ValidateBundleID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "app ID cannot be empty")
	}
	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "bundle ID too long (max 256 characters)")
	}
	if !bundleIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid bundle ID: %q", id)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
