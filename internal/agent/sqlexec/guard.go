package sqlexec

import (
	"fmt"
	"regexp"
	"strings"

	errx "github.com/saleswire/server/internal/core/error"
)

// Catalog SQL is SELECT-only. Interpolated parameter values come from user
// text, so everything is re-checked right before execution and fails closed.
var forbiddenKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE)\b`)

// Validate rejects any statement that is not a plain SELECT. Keywords are
// matched on word boundaries so column names like created_at pass.
func Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return errx.GuardrailViolation("statement must start with SELECT")
	}
	if m := forbiddenKeyword.FindString(trimmed); m != "" {
		return errx.GuardrailViolation(fmt.Sprintf("forbidden keyword %s", strings.ToUpper(m)))
	}
	return nil
}
