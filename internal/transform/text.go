// Package transform turns fetched build files into page bodies: byte-order
// marks are removed, pagename= references to sibling files gain the
// deployment prefix, and CDATA terminators are escaped.
package transform

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	xtransform "golang.org/x/text/transform"
)

const (
	cdataEnd        = "]]>"
	cdataEndEscaped = "]]]]><![CDATA[>"
	pageRefPrefix   = "pagename="
)

// StripBOM removes a leading UTF-8 byte-order mark. Ill-formed UTF-8 is
// replaced with U+FFFD, so the result is always valid text.
func StripBOM(s string) string {
	out, _, err := xtransform.String(unicode.UTF8BOM.NewDecoder(), s)
	if err != nil {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	return out
}

// RewriteDependencies replaces every literal "pagename=<dep>" with
// "pagename=<prefix><dep>" for each dep. Names are matched literally.
func RewriteDependencies(s, prefix string, deps []string) string {
	for _, dep := range deps {
		if dep == "" {
			continue
		}
		s = strings.ReplaceAll(s, pageRefPrefix+dep, pageRefPrefix+prefix+dep)
	}
	return s
}

// EscapeCDATA makes s safe to embed in a CDATA section by splitting every
// "]]>" across two sections.
func EscapeCDATA(s string) string {
	return strings.ReplaceAll(s, cdataEnd, cdataEndEscaped)
}

// UnescapeCDATA reverses EscapeCDATA.
func UnescapeCDATA(s string) string {
	return strings.ReplaceAll(s, cdataEndEscaped, cdataEnd)
}
