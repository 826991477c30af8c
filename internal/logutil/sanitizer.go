// Package logutil redacts client-supplied values before they reach logs.
package logutil

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	paramPlaceholder = regexp.MustCompile(`\$\d+`)
	stringLiteral    = regexp.MustCompile(`'(?:[^']|'')*'`)
	numericLiteral   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	uuidLiteral      = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
)

// SanitizeSQL replaces literal values in a SQL string with markers so
// filter values, IDs and other client-supplied data never appear in logs.
// Compiled queries carry $n placeholders, which are preserved; string,
// numeric and uuid literals are redacted.
//
// Example:
//
//	SELECT * FROM "users" WHERE "email" = 'a@b.com' AND "id" = $1
//	=> SELECT * FROM "users" WHERE "email" = '<redacted>' AND "id" = $1
func SanitizeSQL(query string) string {
	// Hide $n placeholders from the numeric pass.
	params := paramPlaceholder.FindAllString(query, -1)
	for i, param := range params {
		query = strings.Replace(query, param, "\x00P"+fmt.Sprint(i)+"\x00", 1)
	}

	query = stringLiteral.ReplaceAllString(query, "'<redacted>'")
	query = uuidLiteral.ReplaceAllString(query, "<uuid>")
	query = numericLiteral.ReplaceAllString(query, "<num>")

	for i, param := range params {
		query = strings.Replace(query, "\x00P"+fmt.Sprint(i)+"\x00", param, 1)
	}
	return query
}
