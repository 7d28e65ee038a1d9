package transform

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripBOM(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "leading bom", in: "\uFEFF<html>", want: "<html>"},
		{name: "no bom", in: "<html>", want: "<html>"},
		{name: "bom not leading", in: "a\uFEFFb", want: "a\uFEFFb"},
		{name: "only bom", in: "\uFEFF", want: ""},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripBOM(tt.in))
		})
	}
}

func TestRewriteDependencies(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		prefix string
		deps   []string
		want   string
	}{
		{
			name:   "single reference",
			in:     `<script src="?a=dbpage&pagename=lib.js"></script>`,
			prefix: "D_42_",
			deps:   []string{"lib.js"},
			want:   `<script src="?a=dbpage&pagename=D_42_lib.js"></script>`,
		},
		{
			name:   "every occurrence",
			in:     "pagename=a.css pagename=a.css",
			prefix: "P_1_",
			deps:   []string{"a.css"},
			want:   "pagename=P_1_a.css pagename=P_1_a.css",
		},
		{
			name:   "undeclared name untouched",
			in:     "pagename=other.js pagename=lib.js",
			prefix: "D_1_",
			deps:   []string{"lib.js"},
			want:   "pagename=other.js pagename=D_1_lib.js",
		},
		{
			name:   "metacharacters are literal",
			in:     "pagename=a.b+c(1).js pagename=aXb+c(1).js",
			prefix: "D_1_",
			deps:   []string{"a.b+c(1).js"},
			want:   "pagename=D_1_a.b+c(1).js pagename=aXb+c(1).js",
		},
		{
			name:   "bare name without pagename is untouched",
			in:     "lib.js",
			prefix: "D_1_",
			deps:   []string{"lib.js"},
			want:   "lib.js",
		},
		{
			name:   "no deps",
			in:     "pagename=lib.js",
			prefix: "D_1_",
			want:   "pagename=lib.js",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteDependencies(tt.in, tt.prefix, tt.deps))
		})
	}
}

func TestEscapeCDATA(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a]]>b",
		"]]>]]>",
		"]]]>",
		"x]]]]><![CDATA[>y",
		"if (a[b[0]]>1) {}",
	}
	for _, in := range inputs {
		escaped := EscapeCDATA(in)
		assert.Equal(t, in, UnescapeCDATA(escaped), in)

		// An XML parser must read the wrapped section back as the input.
		var doc struct {
			Body string `xml:",chardata"`
		}
		require.NoError(t, xml.Unmarshal([]byte("<p><![CDATA["+escaped+"]]></p>"), &doc), in)
		assert.Equal(t, in, doc.Body, in)
	}
	assert.Equal(t, "a]]]]><![CDATA[>b", EscapeCDATA("a]]>b"))
	assert.NotContains(t, strings.ReplaceAll(EscapeCDATA("a]]>b]]>"), cdataEndEscaped, ""), cdataEnd)
}

func TestApply_Order(t *testing.T) {
	in := "\uFEFF<a href=\"?pagename=lib.js\">x]]>y</a>"
	got := Apply(in, "D_9_", []string{"lib.js"})
	assert.Equal(t, "<a href=\"?pagename=D_9_lib.js\">x]]]]><![CDATA[>y</a>", got)
}
