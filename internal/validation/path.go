// Package validation guards values livepen hands to the filesystem, to
// child processes and to the platform browser opener. Rejections are
// security errors unless the value is merely malformed.
package validation

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conneroisu/livepen/internal/errors"
)

// shellMeta are the characters a shell would interpret.
const shellMeta = ";&|$`<>"

var restrictedPrefixes = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidatePath rejects empty paths, ".." segments, system locations and
// shell metacharacters. Absolute paths are fine.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "path cannot be empty")
	}

	slashed := filepath.ToSlash(path)
	if slices.Contains(strings.Split(slashed, "/"), "..") {
		return errors.ErrPathTraversal(path)
	}

	clean := strings.ToLower(filepath.ToSlash(filepath.Clean(path)))
	for _, prefix := range restrictedPrefixes {
		if strings.HasPrefix(clean, prefix) {
			return errors.NewSecurityError(errors.ErrCodeInvalidPath, "access to restricted path denied: "+path)
		}
	}

	if i := strings.IndexAny(path, shellMeta); i >= 0 {
		return errors.NewSecurityError(errors.ErrCodeCommandInjection,
			fmt.Sprintf("path %q contains %q", path, path[i]))
	}
	return nil
}
