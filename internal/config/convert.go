package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"parlo/internal/accumulator"
	"parlo/internal/language"
	"parlo/internal/realtime"
)

// ResolveAPIKey returns the provider credential: the config value, falling
// back to the OPENAI_API_KEY environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.Provider.APIKey != "" {
		return c.Provider.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// AccumulatorTuning converts the tuning table for the sentence accumulator.
func (c *Config) AccumulatorTuning() accumulator.Tuning {
	return accumulator.Tuning{
		CJKMinChars:   c.Tuning.CJKMinChars,
		LatinMinChars: c.Tuning.LatinMinChars,
		LatinMinWords: c.Tuning.LatinMinWords,
		ShortFallback: time.Duration(c.Tuning.ShortFallbackMs) * time.Millisecond,
		LongFallback:  time.Duration(c.Tuning.LongFallbackMs) * time.Millisecond,
	}
}

// ActivityWindow is the voice-activity corroboration window for transcripts.
func (c *Config) ActivityWindow() time.Duration {
	return time.Duration(c.Tuning.ActivityWindowMs) * time.Millisecond
}

// RealtimeConfig builds the provider session settings for one listening
// session: instructions, transcription hint, and voice, resolved from the
// language pair and direction.
func (c *Config) RealtimeConfig() realtime.Config {
	cfg := realtime.Config{
		APIKey:       c.ResolveAPIKey(),
		Model:        c.Provider.Model,
		URL:          c.Provider.URL,
		Instructions: c.Instructions(),
	}

	// A fixed direction pins the transcription language; auto leaves the
	// provider to detect it.
	switch c.Translation.Direction {
	case DirectionAToB:
		cfg.TranscribeLang = c.Translation.LanguageA
	case DirectionBToA:
		cfg.TranscribeLang = c.Translation.LanguageB
	}

	if c.Voice.Enabled && c.Voice.Mode == "realtime" {
		cfg.Voice = c.Voice.Name
	}
	return cfg
}

// Instructions renders the interpreter prompt for the configured pair and
// direction, with the user context appended.
func (c *Config) Instructions() string {
	a := language.Name(c.Translation.LanguageA)
	b := language.Name(c.Translation.LanguageB)

	var sb strings.Builder
	sb.WriteString("You are a professional simultaneous interpreter. ")
	switch c.Translation.Direction {
	case DirectionAToB:
		fmt.Fprintf(&sb, "Translate everything you hear from %s into %s.", a, b)
	case DirectionBToA:
		fmt.Fprintf(&sb, "Translate everything you hear from %s into %s.", b, a)
	default:
		fmt.Fprintf(&sb, "If the speech is in %s, translate it into %s. If the speech is in %s, translate it into %s.", a, b, b, a)
	}
	sb.WriteString(" Output only the translation, nothing else.")
	sb.WriteString(" Never answer questions, never converse, never add explanations.")
	sb.WriteString(" If the input is unclear or inaudible, output nothing.")

	if ctx := strings.TrimSpace(c.Translation.Context); ctx != "" {
		sb.WriteString(" Context for this session: ")
		sb.WriteString(ctx)
	}
	return sb.String()
}
