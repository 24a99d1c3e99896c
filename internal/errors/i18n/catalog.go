// Package i18n holds localized message catalogs for domain error codes.
package i18n

import (
	"strings"
	"text/template"
)

// Code mirrors the string form of a domain error code.
type Code = string

// Catalog formats error codes into localized user-facing messages.
type Catalog struct {
	locale   string
	messages map[Code]string
}

// Locale returns the catalog locale tag.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code, substituting {{.Key}} placeholders
// from metadata. Unknown codes fall back to a generic message.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	msg, ok := c.messages[code]
	if !ok {
		return "An unexpected error occurred"
	}
	if len(metadata) == 0 || !strings.Contains(msg, "{{") {
		return msg
	}

	tmpl, err := template.New(code).Parse(msg)
	if err != nil {
		return msg
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, metadata); err != nil {
		return msg
	}
	return sb.String()
}

// GetCatalog returns the catalog for locale, defaulting to en-US.
func GetCatalog(locale string) *Catalog {
	switch strings.ToLower(locale) {
	case "en-us", "en", "":
		return enUSCatalog
	default:
		return enUSCatalog
	}
}
