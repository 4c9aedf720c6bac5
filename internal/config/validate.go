package config

import (
	"fmt"

	"parlo/internal/language"
)

func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return fmt.Errorf("invalid provider.model: empty")
	}

	if !language.IsValidCode(c.Translation.LanguageA) {
		return fmt.Errorf("invalid translation.language_a: %q (use ISO 639-1 codes like 'en', 'ko')", c.Translation.LanguageA)
	}
	if !language.IsValidCode(c.Translation.LanguageB) {
		return fmt.Errorf("invalid translation.language_b: %q (use ISO 639-1 codes like 'en', 'ko')", c.Translation.LanguageB)
	}
	if c.Translation.LanguageA == c.Translation.LanguageB {
		return fmt.Errorf("translation.language_a and language_b are both %q", c.Translation.LanguageA)
	}

	switch c.Translation.Direction {
	case DirectionAToB, DirectionBToA, DirectionAuto:
	default:
		return fmt.Errorf("invalid translation.direction: %q (must be a-to-b, b-to-a, or auto)", c.Translation.Direction)
	}

	switch c.Voice.Mode {
	case "realtime", "tts":
	default:
		return fmt.Errorf("invalid voice.mode: %q (must be realtime or tts)", c.Voice.Mode)
	}
	if c.Voice.Enabled && !validVoice(c.Voice.Name) {
		return fmt.Errorf("invalid voice.name: %q (must be one of %v)", c.Voice.Name, Voices)
	}

	if c.Subtitle.MaxChars < 10 || c.Subtitle.MaxChars > 120 {
		return fmt.Errorf("invalid subtitle.max_chars: %d (must be 10-120)", c.Subtitle.MaxChars)
	}

	t := c.Tuning
	if t.ActivityWindowMs <= 0 {
		return fmt.Errorf("invalid tuning.activity_window_ms: %d", t.ActivityWindowMs)
	}
	if t.ShortFallbackMs <= 0 || t.LongFallbackMs <= 0 {
		return fmt.Errorf("invalid tuning fallback timers: short=%d long=%d", t.ShortFallbackMs, t.LongFallbackMs)
	}
	if t.CJKMinChars <= 0 || t.LatinMinChars <= 0 || t.LatinMinWords <= 0 {
		return fmt.Errorf("invalid tuning length thresholds: cjk=%d latin=%d words=%d",
			t.CJKMinChars, t.LatinMinChars, t.LatinMinWords)
	}

	return nil
}

func validVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}
