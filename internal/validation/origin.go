package validation

import (
	"net/url"
	"slices"
	"strings"

	"github.com/conneroisu/livepen/internal/errors"
)

// ValidateOrigin accepts an http or https Origin header whose full value
// or host:port is listed in allowed.
func ValidateOrigin(origin string, allowed []string) error {
	if origin == "" {
		return errors.NewSecurityError(errors.ErrCodeInvalidOrigin, "origin header is required")
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.ErrInvalidOrigin(origin)
	}
	if slices.Contains(allowed, origin) || slices.Contains(allowed, u.Host) {
		return nil
	}
	return errors.ErrInvalidOrigin(origin)
}

// ValidateURL checks the editor URL before it reaches the platform browser
// opener: http or https, a host, and nothing a shell would interpret.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSecurity, errors.ErrCodeInvalidURL, "invalid URL")
	}

	var problem string
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		problem = "scheme " + u.Scheme + " is not allowed"
	case strings.ContainsAny(rawURL, argMeta+" \n\r"):
		problem = "URL contains shell metacharacters or whitespace"
	case u.Host == "":
		problem = "URL has no host"
	default:
		return nil
	}
	return errors.NewSecurityError(errors.ErrCodeInvalidURL, problem)
}
