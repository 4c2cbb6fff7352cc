// Package spdx bundles canonical license texts for common SPDX identifiers
// and resolves simple SPDX expressions against them. The table is embedded
// into the binary, loaded once at process start, and never mutated.
package spdx

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed texts/*.txt
var textsFS embed.FS

// texts maps SPDX identifier to canonical license text, keyed by the
// lowercased identifier.
var texts = map[string]string{}

func init() {
	entries, err := fs.ReadDir(textsFS, "texts")
	if err != nil {
		panic(fmt.Sprintf("reading embedded license texts: %s", err))
	}
	for _, entry := range entries {
		data, err := fs.ReadFile(textsFS, "texts/"+entry.Name())
		if err != nil {
			panic(fmt.Sprintf("reading embedded license text %s: %s", entry.Name(), err))
		}
		id := strings.TrimSuffix(entry.Name(), ".txt")
		texts[strings.ToLower(id)] = string(data)
	}
}

// Text returns the canonical license text for a single SPDX identifier.
// Lookup is case-insensitive and ignores a trailing "+" (or-later) marker.
func Text(identifier string) (string, bool) {
	text, ok := texts[strings.ToLower(strings.TrimSuffix(identifier, "+"))]
	return text, ok
}

// Identifiers splits an SPDX expression into its license identifiers, in
// order of appearance and without duplicates. Logical operators,
// parentheses, and "WITH <exception>" clauses are discarded; this
// intentionally flattens the expression rather than evaluating it.
func Identifiers(expression string) []string {
	fields := strings.FieldsFunc(expression, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '(' || r == ')'
	})

	var ids []string
	seen := map[string]struct{}{}
	skipNext := false
	for _, field := range fields {
		if skipNext {
			skipNext = false
			continue
		}
		switch strings.ToUpper(field) {
		case "OR", "AND":
			continue
		case "WITH":
			skipNext = true
			continue
		}
		key := strings.ToLower(field)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, field)
	}
	return ids
}

// Texts resolves an SPDX expression to the canonical texts of every known
// identifier in it, ordered as the identifiers appear in the expression.
// Unknown identifiers are skipped, not errors.
func Texts(expression string) []string {
	var out []string
	for _, id := range Identifiers(expression) {
		if text, ok := Text(id); ok {
			out = append(out, text)
		}
	}
	return out
}
