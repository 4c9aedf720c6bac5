// Package filter classifies transcript fragments and completed translations,
// rejecting speech-recognizer hallucinations, recognizer repetition loops,
// assistant-register model misbehavior, and duplicate translations.
package filter

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// Transcripts shorter than this are noise.
	minTranscriptLen = 4

	// Size of the recent-transcription ring and how many identical entries
	// within it flag a recognizer loop.
	recentRingSize  = 5
	repeatThreshold = 2

	// Completed translations remembered for duplicate suppression.
	historyRingSize = 4
)

// Filter holds the repetition and duplicate-suppression state for one
// listening session. It is owned by the session and must be Reset on
// teardown; it is not safe for concurrent use.
type Filter struct {
	patterns *PatternSet

	recent  []string // normalized recent transcripts, oldest first
	history []string // normalized accepted translations, oldest first
}

func New(patterns *PatternSet) *Filter {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Filter{patterns: patterns}
}

// IsHallucination reports whether a raw transcript looks like recognizer
// output for silence, music, or channel boilerplate. Pure: string and regex
// checks only, no state.
func (f *Filter) IsHallucination(text string) bool {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minTranscriptLen {
		return true
	}
	if strings.HasPrefix(text, "♪") || strings.HasPrefix(text, "[") || strings.HasPrefix(text, "(") {
		return true
	}
	for _, exact := range f.patterns.ExactHallucinations {
		if text == exact {
			return true
		}
	}
	for _, sub := range f.patterns.ContainsHallucinations {
		if strings.Contains(text, sub) {
			return true
		}
	}
	for _, re := range f.patterns.HallucinationPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// IsRepeatedTranscription reports whether the same normalized transcript has
// already appeared in the recent ring, which indicates the recognizer is
// looping on the same output. The current text is always pushed into the
// ring, whatever the verdict.
func (f *Filter) IsRepeatedTranscription(text string) bool {
	norm := normalize(text)

	count := 0
	for _, prev := range f.recent {
		if prev == norm {
			count++
		}
	}

	f.recent = append(f.recent, norm)
	if len(f.recent) > recentRingSize {
		f.recent = f.recent[1:]
	}

	return count+1 >= repeatThreshold
}

// ClearRecentTranscriptions empties the repetition ring. Call on stop and on
// disconnect so one session's loop detection never bleeds into the next.
func (f *Filter) ClearRecentTranscriptions() {
	f.recent = nil
}

// AdmitTranscript runs the full transcript pipeline in cheapest-first order:
// audio-activity corroboration, hallucination patterns, repetition.
func (f *Filter) AdmitTranscript(text string, hadRecentSpeech bool) bool {
	if !hadRecentSpeech {
		// Transcript with no voice activity behind it is a transcription of
		// silence or background noise.
		log.Debug().Str("text", text).Msg("filter: rejected, no recent speech")
		return false
	}
	if f.IsHallucination(text) {
		log.Debug().Str("text", text).Msg("filter: rejected as hallucination")
		return false
	}
	if f.IsRepeatedTranscription(text) {
		log.Debug().Str("text", text).Msg("filter: rejected as recognizer loop")
		return false
	}
	return true
}

// IsAssistantResponse reports whether a translation reads as the model
// answering conversationally instead of translating. Pure.
func (f *Filter) IsAssistantResponse(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range f.patterns.AssistantPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// CleanTranslation strips a trailing assistant-register fragment appended
// after a legitimate translation ("... Let me know if you need anything").
// Returns the input unchanged when nothing matches.
func (f *Filter) CleanTranslation(text string) string {
	for _, re := range f.patterns.TrailingPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			// Keep the sentence-final punctuation the pattern consumed.
			_, size := utf8.DecodeRuneInString(text[loc[0]:])
			return strings.TrimSpace(text[:loc[0]+size])
		}
	}
	return text
}

// AdmitTranslation runs the completed-translation pipeline: assistant-response
// rejection, trailing cleanup, empty-after-cleanup rejection, duplicate
// rejection. On acceptance the cleaned text is recorded for duplicate
// suppression and returned.
func (f *Filter) AdmitTranslation(text string) (string, bool) {
	if f.IsAssistantResponse(text) {
		log.Debug().Str("text", text).Msg("filter: rejected assistant response")
		return "", false
	}

	cleaned := strings.TrimSpace(f.CleanTranslation(text))
	if cleaned == "" {
		return "", false
	}

	norm := normalize(cleaned)
	for _, prev := range f.history {
		if prev == norm {
			log.Debug().Str("text", cleaned).Msg("filter: rejected duplicate translation")
			return "", false
		}
	}

	f.history = append(f.history, norm)
	if len(f.history) > historyRingSize {
		f.history = f.history[1:]
	}

	return cleaned, true
}

// Reset clears both rings. Call on session teardown.
func (f *Filter) Reset() {
	f.recent = nil
	f.history = nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
