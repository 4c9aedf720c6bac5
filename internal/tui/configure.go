// Package tui is the interactive configuration wizard.
package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"parlo/internal/config"
)

// ConfigureResult holds the configuration result from the TUI.
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section.
type ConfigSection string

const (
	SectionProvider    ConfigSection = "provider"
	SectionLanguages   ConfigSection = "languages"
	SectionVoice       ConfigSection = "voice"
	SectionSubtitle    ConfigSection = "subtitle"
	SectionContext     ConfigSection = "context"
	SectionSaveExit    ConfigSection = "save_exit"
	SectionDiscardExit ConfigSection = "discard_exit"
)

// Run starts the TUI configuration wizard.
func Run(existingConfig *config.Config) (*ConfigureResult, error) {
	if existingConfig == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !hasUserChanges(existingConfig) {
		if err := editProvider(existingConfig); err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}
		if err := editLanguages(existingConfig); err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}
	}
	return runMenu(existingConfig)
}

// hasUserChanges detects if config has user modifications.
func hasUserChanges(cfg *config.Config) bool {
	return cfg.Provider.APIKey != "" || os.Getenv("OPENAI_API_KEY") != ""
}

func runMenu(cfg *config.Config) (*ConfigureResult, error) {
	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: cfg, Cancelled: false}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionProvider:
			if err := editProvider(cfg); err != nil {
				continue
			}

		case SectionLanguages:
			if err := editLanguages(cfg); err != nil {
				continue
			}

		case SectionVoice:
			if err := editVoice(cfg); err != nil {
				continue
			}

		case SectionSubtitle:
			if err := editSubtitle(cfg); err != nil {
				continue
			}

		case SectionContext:
			if err := editContext(cfg); err != nil {
				continue
			}
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatProviderLabel(cfg), SectionProvider),
		huh.NewOption(formatLanguagesLabel(cfg), SectionLanguages),
		huh.NewOption(formatVoiceLabel(cfg), SectionVoice),
		huh.NewOption(formatSubtitleLabel(cfg), SectionSubtitle),
		huh.NewOption("Session Context", SectionContext),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

// clearScreen clears the terminal screen.
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
