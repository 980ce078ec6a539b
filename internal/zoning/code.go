package zoning

import (
	"regexp"
	"strings"
)

// hyphenless matches family codes that the service sometimes returns without
// the separator, e.g. "ZR4" for "ZR-4".
var hyphenless = regexp.MustCompile(`^(ZR|ZUM|ZS|ZH|ZE|ZT|ECO)(\d+)$`)

// aliases maps legacy sector codes to their catalog code.
var aliases = map[string]string{
	"ZCC.4": "ZCC",
}

// NormalizeCode canonicalizes a raw zone code: trimmed, upper case, inner
// whitespace removed, legacy aliases resolved, and a hyphen between a family
// prefix and its number.
func NormalizeCode(raw string) string {
	code := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if alias, ok := aliases[code]; ok {
		return alias
	}
	return hyphenless.ReplaceAllString(code, "$1-$2")
}
