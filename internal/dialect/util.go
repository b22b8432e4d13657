package dialect

import (
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// quoteWith wraps value in open/close and doubles any embedded close rune.
func quoteWith(value string, open, close rune) string {
	escaped := strings.ReplaceAll(value, string(close), string(close)+string(close))
	return string(open) + escaped + string(close)
}

// joinIdents quotes every name with quote and joins them with ", ".
func joinIdents(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

// prefixIdents quotes every name and prefixes it with alias and a dot.
func prefixIdents(alias string, names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = alias + "." + quote(n)
	}
	return strings.Join(quoted, ", ")
}

// referentialAction returns the ON UPDATE/ON DELETE suffix, omitting the default.
func referentialAction(verb, rule string) string {
	rule = strings.ToUpper(strings.TrimSpace(rule))
	if rule == "" || rule == "NO ACTION" {
		return ""
	}
	return " ON " + verb + " " + rule
}

// sqlString renders value as a single-quoted SQL string literal.
func sqlString(value string) string {
	return quoteWith(value, '\'', '\'')
}

// nonKeyColumns returns cols that are not part of pk, preserving order.
func nonKeyColumns(cols, pk []string) []string {
	inPK := make(map[string]bool, len(pk))
	for _, c := range pk {
		inPK[c] = true
	}
	var rest []string
	for _, c := range cols {
		if !inPK[c] {
			rest = append(rest, c)
		}
	}
	return rest
}
