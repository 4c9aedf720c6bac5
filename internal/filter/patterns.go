package filter

import "regexp"

// PatternSet holds the per-locale text patterns the filter matches against.
// Patterns are data, not code: tuning a locale means editing these tables,
// not the classification logic in filter.go.
type PatternSet struct {
	// ExactHallucinations are transcripts rejected on exact match. These are
	// the stock phrases speech recognizers emit for silence or music beds.
	ExactHallucinations []string

	// ContainsHallucinations mark a transcript as non-speech wherever they
	// appear (bracketed audio tags and similar).
	ContainsHallucinations []string

	// HallucinationPatterns is a broader regex net for promotional or
	// sign-off boilerplate.
	HallucinationPatterns []*regexp.Regexp

	// AssistantPatterns match translations where the model answered as a
	// conversational assistant instead of translating. Anchored at the start
	// of the string to keep false positives down on legitimate content.
	AssistantPatterns []*regexp.Regexp

	// TrailingPatterns match assistant-register fragments appended after an
	// otherwise fine translation. The translation is truncated at the start
	// of the match.
	TrailingPatterns []*regexp.Regexp
}

// DefaultPatterns covers English and Korean, the language pair the app was
// tuned on. Other locales fall back to the English subset, which catches the
// bracketed tags and assistant openers that are language-independent.
func DefaultPatterns() *PatternSet {
	return &PatternSet{
		ExactHallucinations: []string{
			// Korean: subscribe/thanks-for-watching boilerplate
			"구독과 좋아요 부탁드립니다",
			"좋아요와 구독 부탁드립니다",
			"오늘도 시청해주셔서 감사합니다",
			"오늘도 시청해 주셔서 감사합니다",
			"시청해주셔서 감사합니다",
			"시청해 주셔서 감사합니다",
			"감사합니다",
			"MBC 뉴스",
			"KBS 뉴스",
			"SBS 뉴스",
			"이덕영입니다",
			// English
			"Thank you for watching",
			"Thanks for watching",
			"Thank you",
			"Please subscribe",
			"Like and subscribe",
			// Punctuation-only fragments
			"....", "...", "..", "♪",
		},
		ContainsHallucinations: []string{
			"[음악]", "[박수]", "[웃음]",
			"[Music]", "[Applause]", "[Laughter]", "[BLANK_AUDIO]",
			"(upbeat music)", "(dramatic music)", "(sighs)",
		},
		HallucinationPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^thanks? (you )?for (watching|listening|tuning in)`),
			regexp.MustCompile(`(?i)^(please |don't forget to )?(like|subscribe)( (and|to) )`),
			regexp.MustCompile(`(?i)^see you (next time|in the next)`),
			regexp.MustCompile(`^다음\s*(영상|시간)에\s*(만나요|뵙겠습니다)`),
			regexp.MustCompile(`^지금까지\s.*(였습니다|입니다)$`),
		},
		AssistantPatterns: []*regexp.Regexp{
			// English assistant openers
			regexp.MustCompile(`(?i)^i'?m sorry\b`),
			regexp.MustCompile(`(?i)^i apologize\b`),
			regexp.MustCompile(`(?i)^sorry, (i|but)\b`),
			regexp.MustCompile(`(?i)^(sure|certainly|of course)[,.!]`),
			regexp.MustCompile(`(?i)^how (can|may) i (help|assist)\b`),
			regexp.MustCompile(`(?i)^(yes,? )?i can (hear|help)\b`),
			regexp.MustCompile(`(?i)^i('?m| am) (ready|here to help)\b`),
			regexp.MustCompile(`(?i)^as an ai\b`),
			regexp.MustCompile(`(?i)^i didn'?t (catch|hear|understand) (that|you)\b`),
			regexp.MustCompile(`(?i)^(it seems|it sounds) like\b.*\?$`),
			regexp.MustCompile(`(?i)^(could|can) you (please )?(repeat|clarify|speak)\b`),
			regexp.MustCompile(`(?i)^(hello|hi there)[,.!]? how\b`),
			regexp.MustCompile(`(?i)^what (would you like|can i do)\b`),
			// Korean polite acknowledgements and assistant replies
			regexp.MustCompile(`^네,?\s*알겠습니다`),
			regexp.MustCompile(`^알겠습니다`),
			regexp.MustCompile(`^네,?\s*(준비됐습니다|준비되었습니다|들립니다)`),
			regexp.MustCompile(`^죄송합니다`),
			regexp.MustCompile(`^죄송하지만`),
			regexp.MustCompile(`^무엇을 도와드릴까요`),
			regexp.MustCompile(`^어떻게 도와드릴까요`),
			regexp.MustCompile(`^도움이 필요하시면`),
			regexp.MustCompile(`^잘 (들리지 않습니다|이해하지 못했습니다)`),
			regexp.MustCompile(`^다시 (한번 )?말씀해 주세요`),
		},
		TrailingPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)[.!?]\s+let me know if\b.*$`),
			regexp.MustCompile(`(?i)[.!?]\s+feel free to\b.*$`),
			regexp.MustCompile(`(?i)[.!?]\s+is there anything else\b.*$`),
			regexp.MustCompile(`(?i)[.!?]\s+(i )?hope (this|that) helps\b.*$`),
			regexp.MustCompile(`(?i)[.!?]\s+how (can|may) i (help|assist)\b.*$`),
			regexp.MustCompile(`[.!?。！？]\s*더 궁금한 (점|것)이 있으면.*$`),
			regexp.MustCompile(`[.!?。！？]\s*도움이 필요하시면.*$`),
			regexp.MustCompile(`[.!?。！？]\s*말씀해 주세요\s*[.!?。！？]?$`),
		},
	}
}
