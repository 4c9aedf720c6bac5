package config

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model: "gpt-4o-realtime-preview",
		},
		Translation: TranslationConfig{
			LanguageA: "en",
			LanguageB: "ko",
			Direction: DirectionAuto,
		},
		Voice: VoiceConfig{
			Enabled: false,
			Mode:    "realtime",
			Name:    "alloy",
		},
		Subtitle: SubtitleConfig{
			Enabled:  true,
			MaxChars: 42,
		},
		Tuning: TuningConfig{
			ActivityWindowMs: 2500,
			ShortFallbackMs:  2500,
			LongFallbackMs:   1200,
			CJKMinChars:      15,
			LatinMinChars:    40,
			LatinMinWords:    5,
			SentenceCheck:    false,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
	}
}

// defaultConfigFile is what gets written to disk on first run. Kept in sync
// with DefaultConfig by TestDefaultFileMatchesDefaults.
const defaultConfigFile = `# parlo configuration

[provider]
# API key for the realtime translation provider. Leave empty to use the
# OPENAI_API_KEY environment variable instead.
api_key = ""
model = "gpt-4o-realtime-preview"

[translation]
# ISO 639-1 codes for the language pair.
language_a = "en"
language_b = "ko"
# "a-to-b", "b-to-a", or "auto" (detect and translate to the other language).
direction = "auto"
# Free-text context appended to the interpreter instructions, e.g. names or
# domain vocabulary that should survive translation.
context = ""

[voice]
# Speak translations aloud.
enabled = false
# "realtime" streams audio over the session; "tts" synthesizes per
# translation with a one-shot request.
mode = "realtime"
name = "alloy"

[subtitle]
enabled = true
# Maximum characters per subtitle line.
max_chars = 42

[tuning]
# A transcript is trusted only if voice activity occurred within this window.
activity_window_ms = 2500
# Fallback submission timers for short and substantial buffers.
short_fallback_ms = 2500
long_fallback_ms = 1200
# Length triggers per script.
cjk_min_chars = 15
latin_min_chars = 40
latin_min_words = 5
# Consult an LLM completeness check before length-triggered submissions.
sentence_check = false

[notifications]
enabled = true
`
