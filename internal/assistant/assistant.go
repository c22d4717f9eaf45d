// Package assistant answers chat messages about the weather. Small talk is
// answered locally; anything naming a city is turned into a prompt carrying
// the resolver's current and forecast data and sent to the completion client.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/i474232898/skynow/internal/common"
	"github.com/i474232898/skynow/internal/completion"
	"github.com/i474232898/skynow/internal/weather"
)

const forecastLines = 5

// WeatherSource is the part of the resolver the assistant reads.
type WeatherSource interface {
	Current(ctx context.Context, city string) (weather.Record, error)
	Forecast(ctx context.Context, city string) ([]weather.Record, error)
}

// Completer produces text for a prompt and never fails.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) completion.Outcome
}

type Assistant struct {
	weather   WeatherSource
	completer Completer
	logger    zerolog.Logger
}

func New(src WeatherSource, completer Completer, logger zerolog.Logger) *Assistant {
	return &Assistant{weather: src, completer: completer, logger: logger}
}

const askForCity = "I'd be happy to help with weather information! Could you please specify which city you're interested in? " +
	"For example, you can ask 'What's the weather in London?' or 'Show me the forecast for Tokyo.' 🌍"

const introduction = `I'm here to help with weather information and travel advice! 🌤✈️

You can ask me things like:
- "What's the weather in Paris?"
- "Should I pack an umbrella for London next week?"
- "Tell me about the forecast in Tokyo"

Which city would you like to know about?`

var weatherWords = regexp.MustCompile(`\b(weather|temperature|rain|sunny|forecast)\b`)

// Reply answers message on behalf of username, which may be empty.
func (a *Assistant) Reply(ctx context.Context, message, username string) string {
	username = strings.TrimSpace(username)
	normalized := common.NormalizeText(message)

	for _, m := range completion.Matchers {
		if m.Matches(normalized) {
			return m.Reply(username)
		}
	}

	city := ExtractCity(normalized)
	if city == "" {
		if weatherWords.MatchString(normalized) {
			return askForCity
		}
		return introduction
	}

	info := a.weatherInfo(ctx, city)
	out := a.completer.Complete(ctx, completion.Request{Prompt: buildPrompt(normalized, username, city, info)})
	if out.Fallback {
		a.logger.Warn().Str("city", city).Str("kind", out.FallbackKind).Msg("completion unavailable; replying with raw weather data")
		return degradedReply(city, info)
	}
	return out.Text
}

// weatherInfo renders what the resolver knows about city. Failures are noted
// inline rather than aborting the reply.
func (a *Assistant) weatherInfo(ctx context.Context, city string) string {
	var b strings.Builder
	b.WriteString("Weather Information:\n")

	if cur, err := a.weather.Current(ctx, city); err != nil {
		a.logger.Debug().Err(err).Str("city", city).Msg("current weather unavailable for chat")
		fmt.Fprintf(&b, "(Current weather data for %s is temporarily unavailable)\n", city)
	} else {
		fmt.Fprintf(&b, "Current conditions in %s:\n", city)
		fmt.Fprintf(&b, "- Temperature: %.1fC\n", cur.Temperature)
		fmt.Fprintf(&b, "- Conditions: %s\n", cur.Description)
		fmt.Fprintf(&b, "- Humidity: %.0f%%\n", cur.Humidity)
		fmt.Fprintf(&b, "- Wind Speed: %.1f m/s\n\n", cur.WindSpeed)
	}

	forecast, err := a.weather.Forecast(ctx, city)
	switch {
	case err != nil:
		a.logger.Debug().Err(err).Str("city", city).Msg("forecast unavailable for chat")
		fmt.Fprintf(&b, "(Forecast data for %s is temporarily unavailable)\n", city)
	case len(forecast) > 0:
		b.WriteString("Forecast overview:\n")
		for i, f := range forecast {
			if i == forecastLines {
				break
			}
			fmt.Fprintf(&b, "- %s: %.1fC, %s\n", f.Timestamp.Format("2006-01-02 15:04"), f.Temperature, f.Description)
		}
	}
	return b.String()
}

func buildPrompt(message, username, city, info string) string {
	var b strings.Builder
	if username != "" {
		fmt.Fprintf(&b, "User name: %s\n", username)
	}
	fmt.Fprintf(&b, "User message: %q\n\n", message)
	b.WriteString(info)
	fmt.Fprintf(&b, `
Based on the user's message above, interpret the destination and travel dates (correct typos if present). Then give specific travel advice for visiting %s. If you had to infer missing information, mention your assumptions briefly.

Consider and include:
1. What clothing to pack
2. Best times for outdoor activities
3. Any weather-related precautions or travel warnings
4. Practical travel recommendations (transport, timing, tips)

Keep the response conversational and friendly. If the destination or date is ambiguous, state the ambiguity and offer one concise clarifying question.
`, city)
	return b.String()
}

func degradedReply(city, info string) string {
	return fmt.Sprintf(`I can't put together detailed travel advice right now, but here is what I know about %s. 🌤

%s
Tips until then: pack layers, bring an umbrella or sunscreen as needed, and keep an indoor plan as backup.`, city, info)
}

var (
	cityPrefixes = []string{" to ", " in ", " for ", " at "}
	cityStop     = regexp.MustCompile(`\b(next|this|on|during|for|when|today|tomorrow|tonight|weekend)\b|\d`)
	cityFillers  = map[string]bool{"go": true, "visit": true, "travel": true, "fly": true, "be": true, "the": true}
)

// ExtractCity finds the place named after "to", "in", "for" or "at" in
// normalized text and returns it title-cased, or "" when none is found.
func ExtractCity(normalized string) string {
	text := " " + normalized
	for _, prefix := range cityPrefixes {
		idx := strings.Index(text, prefix)
		if idx < 0 {
			continue
		}
		part := text[idx+len(prefix):]
		if loc := cityStop.FindStringIndex(part); loc != nil {
			part = part[:loc[0]]
		}

		words := strings.Fields(common.TrimPunctuation(part))
		for len(words) > 1 && cityFillers[words[0]] {
			words = words[1:]
		}
		for i, w := range words {
			words[i] = common.TitleCase(common.TrimPunctuation(w))
		}
		if city := strings.TrimSpace(strings.Join(words, " ")); city != "" {
			return city
		}
	}
	return ""
}
