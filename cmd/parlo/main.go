package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"parlo/internal/bus"
	"parlo/internal/config"
	"parlo/internal/daemon"
	"parlo/internal/tui"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "parlo",
	Short: "Live speech translation between two languages",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		listenCmd(),
		stopCmd(),
		statusCmd(),
		clearCmd(),
		voiceCmd(),
		subtitleCmd(),
		directionCmd(),
		widthCmd(),
		configureCmd(),
		versionCmd(),
		quitCmd(),
	)
}

func serveCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			d, err := daemon.New(nil)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// sendCmd builds a cobra command that forwards one control-bus command and
// prints the daemon's reply.
func sendCmd(use, short string, b byte) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(b, "")
			if err != nil {
				return fmt.Errorf("failed to reach daemon (is 'parlo serve' running?): %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func listenCmd() *cobra.Command {
	return sendCmd("listen", "Start a listening session", bus.CmdListen)
}

func stopCmd() *cobra.Command {
	return sendCmd("stop", "Stop the listening session", bus.CmdStop)
}

func statusCmd() *cobra.Command {
	return sendCmd("status", "Get daemon and session status", bus.CmdStatus)
}

func clearCmd() *cobra.Command {
	return sendCmd("clear", "Clear the transcript and translation logs", bus.CmdClear)
}

func versionCmd() *cobra.Command {
	return sendCmd("version", "Get protocol version", bus.CmdVersion)
}

func quitCmd() *cobra.Command {
	return sendCmd("quit", "Stop the daemon", bus.CmdQuit)
}

func voiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "voice [on|off]",
		Short:     "Toggle spoken translation output",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}
			resp, err := bus.SendCommand(bus.CmdVoice, payload)
			if err != nil {
				return fmt.Errorf("failed to toggle voice: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func subtitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "subtitle [on|off]",
		Short:     "Toggle subtitle display",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}
			resp, err := bus.SendCommand(bus.CmdSubtitle, payload)
			if err != nil {
				return fmt.Errorf("failed to toggle subtitles: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func directionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "direction <a-to-b|b-to-a|auto>",
		Short:     "Change the translation direction",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.DirectionAToB, config.DirectionBToA, config.DirectionAuto},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdDirection, args[0])
			if err != nil {
				return fmt.Errorf("failed to change direction: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func widthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "width <chars>",
		Short: "Set the maximum subtitle line width",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdWidth, args[0])
			if err != nil {
				return fmt.Errorf("failed to set width: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for parlo.
This will guide you through setting up:
- OpenAI API credentials
- The language pair and translation direction
- Voice output and subtitle preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()
	showNextSteps()
	return nil
}

func showNextSteps() {
	fmt.Println("Next Steps:")
	fmt.Println("1. Start the daemon: parlo serve (or systemctl --user start parlo.service)")
	fmt.Println("2. Start translating: parlo listen")
	fmt.Println("3. Check what is happening: parlo status")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}
