package sandbox

import (
	"regexp"
	"strings"
)

// EntryPoint is the symbol a patch must define.
const EntryPoint = "buildPatch"

// Accepted export shapes. This is a textual pass, not a parser: an export
// keyword inside a string literal or comment is rewritten too.
var exportRewrites = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// export default function buildPatch(...)
	{regexp.MustCompile(`\bexport\s+default\s+`), ""},
	// export function buildPatch(...)
	{regexp.MustCompile(`\bexport\s+function\s+`), "function "},
	// export const buildPatch = ...
	{regexp.MustCompile(`\bexport\s+const\s+` + EntryPoint + `\s*=\s*`), "var " + EntryPoint + " = "},
	// export { buildPatch };
	{regexp.MustCompile(`(?m)\bexport\s+\{\s*` + EntryPoint + `\s*\}\s*;?\s*$`), ""},
}

// StripExports removes module export syntax so the text can live inside a function body.
func StripExports(src string) string {
	for _, rewrite := range exportRewrites {
		src = rewrite.pattern.ReplaceAllLiteralString(src, rewrite.replacement)
	}
	return strings.TrimSpace(src)
}

// Wrap places stripped patch text in a function that takes the audio library
// and returns the entry point, or null when it is not a function.
func Wrap(stripped string) string {
	var b strings.Builder
	b.WriteString("(function(Tone) {\n")
	b.WriteString("var " + EntryPoint + ";\n")
	b.WriteString(stripped)
	b.WriteString("\nreturn typeof " + EntryPoint + " === 'function' ? " + EntryPoint + " : null;\n")
	b.WriteString("})")
	return b.String()
}
