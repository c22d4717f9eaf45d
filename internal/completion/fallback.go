package completion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/i474232898/skynow/internal/common"
)

// Fallback kinds, also used as metric labels.
const (
	KindGreeting     = "greeting"
	KindFarewell     = "farewell"
	KindHelp         = "help"
	KindGeneric      = "generic"
	KindUnconfigured = "unconfigured"
)

var userNameMarker = regexp.MustCompile(`(?im)^\s*user name:\s*(.+?)\s*$`)

// Matcher recognises one kind of prompt and renders the local reply for it.
type Matcher struct {
	Kind    string
	Pattern *regexp.Regexp
	Reply   func(name string) string
}

// Matches reports whether normalized lowercase text triggers m.
func (m Matcher) Matches(text string) bool {
	return m.Pattern.MatchString(text)
}

// Matchers are evaluated in order; the first match wins.
var Matchers = []Matcher{
	{
		Kind:    KindGreeting,
		Pattern: regexp.MustCompile(`\b(hi|hello|hey|hii+|good\s*(morning|evening|afternoon))\b`),
		Reply: func(name string) string {
			if name == "" {
				name = "there"
			}
			return fmt.Sprintf("Hi %s! 👋 I'm your friendly Weather Assistant. How can I help you today?", name)
		},
	},
	{
		Kind:    KindFarewell,
		Pattern: regexp.MustCompile(`\b(bye|goodbye|see\s*you|thanks|thank\s*you)\b`),
		Reply: func(name string) string {
			greeting := "Goodbye!"
			if name != "" {
				greeting = fmt.Sprintf("Goodbye %s!", name)
			}
			return greeting + " Have a wonderful day! Feel free to come back if you need more weather or travel advice. 👋"
		},
	},
	{
		Kind:    KindHelp,
		Pattern: regexp.MustCompile(`\b(help|what\s*can\s*you\s*do|how\s*does\s*this\s*work)\b`),
		Reply: func(string) string {
			return HelpText
		},
	},
}

// HelpText lists what the assistant can do.
const HelpText = `I'm your Weather Assistant! I can help you with:

1. Current weather conditions for any city 🌤
2. Weather forecasts and travel planning ✈
3. Packing suggestions based on weather 🧳
4. Best times to visit destinations ⏰

Just ask something like 'How's the weather in London?' or 'I'm planning to visit Tokyo next week!'`

const genericFallback = "I'm having trouble putting together a detailed answer right now. " +
	"Please try again in a moment, or ask about the current weather in a specific city. 🌤"

// UserName extracts the name from a "User name: X" line and returns the
// prompt without that line.
func UserName(prompt string) (name, rest string) {
	m := userNameMarker.FindStringSubmatchIndex(prompt)
	if m == nil {
		return "", prompt
	}
	name = strings.TrimSpace(prompt[m[2]:m[3]])
	rest = prompt[:m[0]] + prompt[m[1]:]
	return name, rest
}

// FallbackText computes a reply for prompt without any network access.
func FallbackText(prompt string) (kind, text string) {
	name, rest := UserName(prompt)
	normalized := common.NormalizeText(rest)

	for _, m := range Matchers {
		if m.Matches(normalized) {
			return m.Kind, m.Reply(name)
		}
	}
	return KindGeneric, genericFallback
}
