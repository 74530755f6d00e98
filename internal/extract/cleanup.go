package extract

import (
	"regexp"
	"strings"
)

// Cleanup patterns shared by every strategy: reporter bylines in
// parentheses, embedded email addresses, and the reuse-prohibition
// boilerplate that Korean outlets append after the body.
var (
	bylineExpr     = regexp.MustCompile(`\([^)]*기자\)`)
	emailExpr      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+`)
	boilerExpr     = regexp.MustCompile(`무단 ?전재.*`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Clean normalizes extracted body text: bylines, emails and trailing
// boilerplate are stripped, then whitespace is collapsed.
func Clean(text string) string {
	text = bylineExpr.ReplaceAllString(text, "")
	text = emailExpr.ReplaceAllString(text, "")
	text = boilerExpr.ReplaceAllString(text, "")
	return CollapseSpaces(text)
}

// CollapseSpaces folds whitespace runs into single spaces and trims.
func CollapseSpaces(text string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}
