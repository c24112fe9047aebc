package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/livepen/internal/errors"
)

// argMeta adds quoting and grouping to shellMeta.
const argMeta = shellMeta + `()\"'`

// ValidateArgument rejects a child process argument containing shell
// syntax or a ".." sequence.
func ValidateArgument(arg string) error {
	if i := strings.IndexAny(arg, argMeta); i >= 0 {
		return errors.NewSecurityError(errors.ErrCodeCommandInjection,
			fmt.Sprintf("argument %q contains %q", arg, arg[i]))
	}
	if strings.Contains(arg, "..") {
		return errors.ErrPathTraversal(arg)
	}
	return nil
}

// ValidateCommand checks an executable name against allowed.
func ValidateCommand(name string, allowed map[string]bool) error {
	if name == "" {
		return errors.NewValidationError(errors.ErrCodeCommandInjection, "command cannot be empty")
	}
	if !allowed[name] {
		return errors.NewSecurityError(errors.ErrCodeCommandInjection,
			fmt.Sprintf("command %q is not allowed", name))
	}
	return ValidateArgument(name)
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidateIdentifier checks that name is a lower-case HTML tag or
// attribute name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid identifier %q", name))
	}
	return nil
}
