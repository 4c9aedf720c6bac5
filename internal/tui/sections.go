package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"parlo/internal/config"
	"parlo/internal/language"
)

func formatProviderLabel(cfg *config.Config) string {
	if cfg.Provider.APIKey == "" {
		return "Provider (using OPENAI_API_KEY)"
	}
	return "Provider"
}

func formatLanguagesLabel(cfg *config.Config) string {
	return fmt.Sprintf("Languages (%s ⇄ %s, %s)",
		language.Name(cfg.Translation.LanguageA),
		language.Name(cfg.Translation.LanguageB),
		cfg.Translation.Direction)
}

func formatVoiceLabel(cfg *config.Config) string {
	if !cfg.Voice.Enabled {
		return "Voice (off)"
	}
	return fmt.Sprintf("Voice (%s, %s)", cfg.Voice.Name, cfg.Voice.Mode)
}

func formatSubtitleLabel(cfg *config.Config) string {
	if !cfg.Subtitle.Enabled {
		return "Subtitles (off)"
	}
	return fmt.Sprintf("Subtitles (%d chars)", cfg.Subtitle.MaxChars)
}

func editProvider(cfg *config.Config) error {
	apiKey := cfg.Provider.APIKey
	model := cfg.Provider.Model

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key").
				Description("Leave empty to use the OPENAI_API_KEY environment variable").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Realtime Model").
				Value(&model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("model is required")
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Provider.APIKey = strings.TrimSpace(apiKey)
	cfg.Provider.Model = strings.TrimSpace(model)
	return nil
}

func editLanguages(cfg *config.Config) error {
	langA := cfg.Translation.LanguageA
	langB := cfg.Translation.LanguageB

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language A").
				Description("Usually your own language").
				Options(languageOptions()...).
				Value(&langA),
			huh.NewSelect[string]().
				Title("Language B").
				Description("The language you want to converse with").
				Options(languageOptions()...).
				Value(&langB),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}
	if langA == langB {
		fmt.Println(StyleError.Render("Languages must differ."))
		return fmt.Errorf("languages must differ")
	}

	cfg.Translation.LanguageA = langA
	cfg.Translation.LanguageB = langB

	direction := cfg.Translation.Direction
	directionForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Translation Direction").
				Options(
					huh.NewOption(fmt.Sprintf("Auto-detect (%s ⇄ %s)", language.Name(langA), language.Name(langB)), config.DirectionAuto),
					huh.NewOption(fmt.Sprintf("%s → %s", language.Name(langA), language.Name(langB)), config.DirectionAToB),
					huh.NewOption(fmt.Sprintf("%s → %s", language.Name(langB), language.Name(langA)), config.DirectionBToA),
				).
				Value(&direction),
		),
	).WithTheme(getTheme())

	if err := directionForm.Run(); err != nil {
		return err
	}
	cfg.Translation.Direction = direction
	return nil
}

func languageOptions() []huh.Option[string] {
	langs := language.List()
	options := make([]huh.Option[string], 0, len(langs))
	for _, l := range langs {
		label := l.Name
		if l.NativeName != "" && l.NativeName != l.Name {
			label = fmt.Sprintf("%s (%s)", l.Name, l.NativeName)
		}
		options = append(options, huh.NewOption(label, l.Code))
	}
	return options
}

func editVoice(cfg *config.Config) error {
	enabled := cfg.Voice.Enabled
	mode := cfg.Voice.Mode
	name := cfg.Voice.Name

	voiceOptions := make([]huh.Option[string], 0, len(config.Voices))
	for _, v := range config.Voices {
		voiceOptions = append(voiceOptions, huh.NewOption(v, v))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Speak translations aloud?").
				Affirmative("Yes").
				Negative("No").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Voice Mode").
				Description("Realtime streams audio with the translation; TTS synthesizes each finished sentence").
				Options(
					huh.NewOption("Realtime (lower latency)", "realtime"),
					huh.NewOption("TTS (text session, spoken separately)", "tts"),
				).
				Value(&mode),
			huh.NewSelect[string]().
				Title("Voice").
				Options(voiceOptions...).
				Value(&name),
		).WithHideFunc(func() bool { return !enabled }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Voice.Enabled = enabled
	cfg.Voice.Mode = mode
	cfg.Voice.Name = name
	return nil
}

func editSubtitle(cfg *config.Config) error {
	enabled := cfg.Subtitle.Enabled
	maxChars := strconv.Itoa(cfg.Subtitle.MaxChars)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Show subtitles?").
				Affirmative("Yes").
				Negative("No").
				Value(&enabled),
			huh.NewInput().
				Title("Max characters per line").
				Value(&maxChars).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("enter a number")
					}
					if n < 10 || n > 120 {
						return fmt.Errorf("must be between 10 and 120")
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Subtitle.Enabled = enabled
	if n, err := strconv.Atoi(strings.TrimSpace(maxChars)); err == nil {
		cfg.Subtitle.MaxChars = n
	}
	return nil
}

func editContext(cfg *config.Config) error {
	context := cfg.Translation.Context

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Session Context").
				Description("Names, topics, or terminology to help the interpreter (optional)").
				Value(&context),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Translation.Context = strings.TrimSpace(context)
	return nil
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	fmt.Println()

	key := "from OPENAI_API_KEY"
	if cfg.Provider.APIKey != "" {
		key = "configured"
	}
	fmt.Printf("  %s %s (%s)\n", StyleLabel.Render("Provider:"), cfg.Provider.Model, key)
	fmt.Printf("  %s %s ⇄ %s (%s)\n", StyleLabel.Render("Languages:"),
		language.Name(cfg.Translation.LanguageA),
		language.Name(cfg.Translation.LanguageB),
		cfg.Translation.Direction)

	if cfg.Voice.Enabled {
		fmt.Printf("  %s %s (%s)\n", StyleLabel.Render("Voice:"), cfg.Voice.Name, cfg.Voice.Mode)
	} else {
		fmt.Printf("  %s disabled\n", StyleLabel.Render("Voice:"))
	}

	if cfg.Subtitle.Enabled {
		fmt.Printf("  %s %d chars per line\n", StyleLabel.Render("Subtitles:"), cfg.Subtitle.MaxChars)
	} else {
		fmt.Printf("  %s disabled\n", StyleLabel.Render("Subtitles:"))
	}

	if cfg.Translation.Context != "" {
		fmt.Printf("  %s %s\n", StyleLabel.Render("Context:"), cfg.Translation.Context)
	}

	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}
