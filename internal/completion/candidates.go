package completion

import "strings"

// PreferredModel is always tried first when the configuration omits it.
const PreferredModel = "gpt-4o-mini"

// safeDefaults are appended after the configured models.
var safeDefaults = []string{"gpt-3.5-turbo", "gpt-4o"}

// Candidates builds the ordered model list: primary, fallback and the safe
// defaults, de-duplicated in first-seen order, with PreferredModel pinned to
// the front when absent.
func Candidates(primary, fallback string) []string {
	merged := append([]string{primary, fallback}, safeDefaults...)

	seen := make(map[string]struct{}, len(merged)+1)
	out := make([]string, 0, len(merged)+1)
	for _, m := range merged {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}

	if _, ok := seen[PreferredModel]; !ok {
		out = append([]string{PreferredModel}, out...)
	}
	return out
}
