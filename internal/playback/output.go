package playback

import (
	"bytes"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// PipeWireSink returns a Sink that plays pcm16 mono 24 kHz chunks through
// pw-play, sleeping until each chunk's scheduled start so back-to-back
// chunks do not overlap.
func PipeWireSink() Sink {
	return func(pcm []byte, start time.Time) {
		go func() {
			if d := time.Until(start); d > 0 {
				time.Sleep(d)
			}
			cmd := exec.Command("pw-play",
				"--format", "s16le",
				"--rate", "24000",
				"--channels", "1",
				"-")
			cmd.Stdin = bytes.NewReader(pcm)
			if err := cmd.Run(); err != nil {
				log.Warn().Err(err).Msg("playback: pw-play failed")
			}
		}()
	}
}
