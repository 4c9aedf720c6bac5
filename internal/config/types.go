package config

// Config is the parlo configuration file, one TOML table per concern.
type Config struct {
	Provider      ProviderConfig      `toml:"provider"`
	Translation   TranslationConfig   `toml:"translation"`
	Voice         VoiceConfig         `toml:"voice"`
	Subtitle      SubtitleConfig      `toml:"subtitle"`
	Tuning        TuningConfig        `toml:"tuning"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// ProviderConfig holds the realtime provider credential and endpoint.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	URL    string `toml:"url"`
}

// TranslationConfig picks the language pair and direction.
type TranslationConfig struct {
	LanguageA string `toml:"language_a"`
	LanguageB string `toml:"language_b"`
	Direction string `toml:"direction"` // "a-to-b", "b-to-a", "auto"
	Context   string `toml:"context"`   // free-text extra instructions
}

// VoiceConfig controls spoken output.
type VoiceConfig struct {
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"mode"` // "realtime" (audio modality) or "tts" (one-shot)
	Name    string `toml:"name"`
}

// SubtitleConfig controls paced caption display.
type SubtitleConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxChars int  `toml:"max_chars"`
}

// TuningConfig exposes the empirically tuned thresholds. The values drifted
// across the app's history, so they are knobs rather than constants.
type TuningConfig struct {
	ActivityWindowMs int  `toml:"activity_window_ms"`
	ShortFallbackMs  int  `toml:"short_fallback_ms"`
	LongFallbackMs   int  `toml:"long_fallback_ms"`
	CJKMinChars      int  `toml:"cjk_min_chars"`
	LatinMinChars    int  `toml:"latin_min_chars"`
	LatinMinWords    int  `toml:"latin_min_words"`
	SentenceCheck    bool `toml:"sentence_check"` // LLM completeness check on length triggers
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Translation directions.
const (
	DirectionAToB = "a-to-b"
	DirectionBToA = "b-to-a"
	DirectionAuto = "auto"
)

// Voices supported by the realtime provider.
var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}
