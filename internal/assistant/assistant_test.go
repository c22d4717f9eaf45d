package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/skynow/internal/completion"
	"github.com/i474232898/skynow/internal/weather"
)

type fakeWeather struct {
	current     weather.Record
	forecast    []weather.Record
	currentErr  error
	forecastErr error
	cities      []string
}

func (f *fakeWeather) Current(_ context.Context, city string) (weather.Record, error) {
	f.cities = append(f.cities, city)
	return f.current, f.currentErr
}

func (f *fakeWeather) Forecast(_ context.Context, city string) ([]weather.Record, error) {
	return f.forecast, f.forecastErr
}

type fakeCompleter struct {
	prompts []string
	outcome completion.Outcome
}

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) completion.Outcome {
	f.prompts = append(f.prompts, req.Prompt)
	return f.outcome
}

func newTestAssistant() (*Assistant, *fakeWeather, *fakeCompleter) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	w := &fakeWeather{
		current: weather.Record{City: "Paris", Temperature: 14.2, Humidity: 70, Description: "light rain", WindSpeed: 3.1, Timestamp: base},
		forecast: []weather.Record{
			{City: "Paris", Temperature: 15, Description: "overcast", Timestamp: base.Add(3 * time.Hour)},
			{City: "Paris", Temperature: 12, Description: "clear sky", Timestamp: base.Add(6 * time.Hour)},
		},
	}
	c := &fakeCompleter{outcome: completion.Outcome{Text: "Bring a raincoat.", Model: "gpt-4o-mini"}}
	return New(w, c, zerolog.Nop()), w, c
}

func TestReplySmallTalkIsLocal(t *testing.T) {
	a, w, c := newTestAssistant()
	ctx := context.Background()

	assert.Contains(t, a.Reply(ctx, "Hiiiii there", "Mia"), "Hi Mia!")
	assert.Contains(t, a.Reply(ctx, "thanks a lot", ""), "Goodbye!")
	assert.Equal(t, completion.HelpText, a.Reply(ctx, "what can you do?", ""))
	assert.Empty(t, c.prompts)
	assert.Empty(t, w.cities)
}

func TestReplyAsksForCity(t *testing.T) {
	a, _, c := newTestAssistant()

	assert.Equal(t, askForCity, a.Reply(context.Background(), "will there be rain?", ""))
	assert.Equal(t, introduction, a.Reply(context.Background(), "I am bored", ""))
	assert.Empty(t, c.prompts)
}

func TestReplyBuildsPromptFromWeather(t *testing.T) {
	a, w, c := newTestAssistant()

	reply := a.Reply(context.Background(), "What's the weather in paris next week?", "Léa")
	assert.Equal(t, "Bring a raincoat.", reply)
	assert.Equal(t, []string{"Paris"}, w.cities)

	require.Len(t, c.prompts, 1)
	prompt := c.prompts[0]
	assert.Contains(t, prompt, "User name: Léa\n")
	assert.Contains(t, prompt, "Current conditions in Paris:")
	assert.Contains(t, prompt, "- Temperature: 14.2C")
	assert.Contains(t, prompt, "- Humidity: 70%")
	assert.Contains(t, prompt, "2025-03-10 15:00: 15.0C, overcast")
	assert.Contains(t, prompt, "travel advice for visiting Paris")

	name, _ := completion.UserName(prompt)
	assert.Equal(t, "Léa", name)
}

func TestReplyNotesUnavailableData(t *testing.T) {
	a, w, c := newTestAssistant()
	w.currentErr = weather.NewError(weather.ErrProviderUnavailable, "current", "openmeteo", errors.New("timeout"))
	w.forecastErr = w.currentErr

	a.Reply(context.Background(), "trip to rome", "")
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "(Current weather data for Rome is temporarily unavailable)")
	assert.Contains(t, c.prompts[0], "(Forecast data for Rome is temporarily unavailable)")
	assert.NotContains(t, c.prompts[0], "User name:")
}

func TestReplyDegradesWhenCompletionFallsBack(t *testing.T) {
	a, _, c := newTestAssistant()
	c.outcome = completion.Outcome{Text: "generic", Fallback: true, FallbackKind: completion.KindGeneric}

	reply := a.Reply(context.Background(), "forecast for paris", "")
	assert.Contains(t, reply, "here is what I know about Paris")
	assert.Contains(t, reply, "- Temperature: 14.2C")
}

func TestExtractCity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"what's the weather in paris?", "Paris"},
		{"i'm planning to visit tokyo next week!", "Tokyo"},
		{"weather in new york tomorrow", "New York"},
		{"i want to go goa", "Goa"},
		{"rain in london on sunday", "London"},
		{"forecast for tokyo", "Tokyo"},
		{"meet me at berlin.", "Berlin"},
		{"weather in örebro", "Örebro"},
		{"weather in łódź", "Łódź"},
		{"forecast for são paulo", "São Paulo"},
		{"weather in 2025", ""},
		{"how is the weather", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCity(tt.in))
		})
	}
}
