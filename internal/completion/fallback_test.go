package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/skynow/internal/common"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name              string
		primary, fallback string
		want              []string
	}{
		{"defaults_only", "", "", []string{"gpt-4o-mini", "gpt-3.5-turbo", "gpt-4o"}},
		{"configured_preferred", "gpt-4o-mini", "gpt-3.5-turbo", []string{"gpt-4o-mini", "gpt-3.5-turbo", "gpt-4o"}},
		{"pins_preferred", "gpt-4", "gpt-4o", []string{"gpt-4o-mini", "gpt-4", "gpt-4o", "gpt-3.5-turbo"}},
		{"preferred_keeps_position", "gpt-4o", "gpt-4o-mini", []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}},
		{"trims_and_dedupes", " gpt-4 ", "gpt-4", []string{"gpt-4o-mini", "gpt-4", "gpt-3.5-turbo", "gpt-4o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.primary, tt.fallback))
		})
	}
}

func TestMatchersIndividually(t *testing.T) {
	byKind := map[string]Matcher{}
	for _, m := range Matchers {
		byKind[m.Kind] = m
	}

	tests := []struct {
		kind  string
		text  string
		match bool
	}{
		{KindGreeting, "hello", true},
		{KindGreeting, "hii", true},
		{KindGreeting, "good morning!", true},
		{KindGreeting, "this is it", false},
		{KindFarewell, "thank you so much", true},
		{KindFarewell, "see you later", true},
		{KindFarewell, "byelorussia", false},
		{KindHelp, "what can you do", true},
		{KindHelp, "how does this work?", true},
		{KindHelp, "a helpful tip", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.text, func(t *testing.T) {
			assert.Equal(t, tt.match, byKind[tt.kind].Matches(common.NormalizeText(tt.text)))
		})
	}
}

func TestFallbackText(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		kind   string
		prefix string
	}{
		{"greeting", "Hello", KindGreeting, "Hi there!"},
		{"stretched_greeting", "hiiiiii", KindGreeting, "Hi there!"},
		{"named_greeting", "User name: Priya\nhey", KindGreeting, "Hi Priya!"},
		{"farewell", "Thanks!", KindFarewell, "Goodbye!"},
		{"named_farewell", "user name: Sam\nok bye", KindFarewell, "Goodbye Sam!"},
		{"help", "HELP", KindHelp, "I'm your Weather Assistant!"},
		{"generic", "Will it snow in Denver", KindGeneric, "I'm having trouble"},
		{"empty", "", KindGeneric, "I'm having trouble"},
		// Greeting wins over farewell.
		{"ordered", "hello and goodbye", KindGreeting, "Hi there!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, text := FallbackText(tt.prompt)
			assert.Equal(t, tt.kind, kind)
			assert.Contains(t, text, tt.prefix)
		})
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	_, first := FallbackText("hello")
	for i := 0; i < 5; i++ {
		_, again := FallbackText("hello")
		assert.Equal(t, first, again)
	}
}

func TestUserName(t *testing.T) {
	name, rest := UserName("User name: Ada Lovelace\nUser message: \"hi\"")
	assert.Equal(t, "Ada Lovelace", name)
	assert.NotContains(t, rest, "Ada")
	assert.Contains(t, rest, "User message")

	name, rest = UserName("no marker here")
	assert.Empty(t, name)
	assert.Equal(t, "no marker here", rest)
}

// A name that looks like a greeting must not trigger the greeting reply.
func TestUserNameIsNotMatched(t *testing.T) {
	kind, _ := FallbackText("User name: Hi\nwill it rain tomorrow")
	assert.Equal(t, KindGeneric, kind)
}
