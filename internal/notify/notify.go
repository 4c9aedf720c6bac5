package notify

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

type Notifier interface {
	ListeningChanged(on bool)
	Error(msg string)
}

type Desktop struct{}

func (Desktop) ListeningChanged(on bool) {
	state := "Stopped"
	if on {
		state = "Started"
	}
	cmd := exec.Command("notify-send", "-a", "Parlo",
		fmt.Sprintf("Parlo: %s Listening", state))
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Msg("notify: failed to send notification")
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", "Parlo", "-u", "critical", msg)
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Msg("notify: failed to send error notification")
	}
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) ListeningChanged(on bool) {}
func (Nop) Error(msg string)         {}
