package arbiter

import (
	"regexp"
	"strings"
	"unicode"
)

// Disposition says what the arbiter did with a submitted candidate. Used as
// the metrics label, so values are stable snake_case strings.
type Disposition string

const (
	Accepted              Disposition = "accepted"
	AcceptedPartial       Disposition = "accepted_partial"
	RejectedEmpty         Disposition = "rejected_empty"
	RejectedTooLong       Disposition = "rejected_too_long"
	RejectedTooShort      Disposition = "rejected_too_short"
	RejectedRepetition    Disposition = "rejected_repetition"
	RejectedHallucination Disposition = "rejected_hallucination"
	RejectedLanguage      Disposition = "rejected_language"
	RejectedConfidence    Disposition = "rejected_low_confidence"
	RejectedDuplicate     Disposition = "rejected_duplicate"
	RejectedStale         Disposition = "rejected_stale"
)

// Rejected reports whether the disposition is any of the rejection outcomes.
func (d Disposition) Rejected() bool {
	return d != Accepted && d != AcceptedPartial
}

var punctOnlyRe = regexp.MustCompile(`^[.,!?;:\s]*$`)

// FilterConfig sets the candidate quality bar.
type FilterConfig struct {
	MinConfidence float64
	MinLength     int
	MaxLength     int
	MinWords      int
	MaxWords      int
	// EnableNoiseWordFilter turns on the hallucination-phrase rejection.
	EnableNoiseWordFilter bool
	// EnableRepetitionFilter turns on the looping-output rejection battery.
	EnableRepetitionFilter bool
	// EnableLanguageFilter rejects transcripts that are mostly non-Latin
	// script. Off by default; it is wrong for multilingual deployments.
	EnableLanguageFilter bool
	// ShortWhitelist lists words accepted even below the minimum word count.
	ShortWhitelist []string
	// HallucinationPhrases are transcripts the ASR engine is known to invent
	// out of silence.
	HallucinationPhrases []string
}

// Filter rejects transcripts that are empty, hallucinated, repetitive, in
// the wrong script, or below the confidence bar.
type Filter struct {
	cfg            FilterConfig
	whitelist      map[string]struct{}
	hallucinations []string
}

// NewFilter builds a filter, normalizing the word lists for lookup.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 300
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 2
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 60
	}
	f := &Filter{
		cfg:            cfg,
		whitelist:      make(map[string]struct{}, len(cfg.ShortWhitelist)),
		hallucinations: make([]string, 0, len(cfg.HallucinationPhrases)),
	}
	for _, w := range cfg.ShortWhitelist {
		f.whitelist[normalize(w)] = struct{}{}
	}
	for _, p := range cfg.HallucinationPhrases {
		f.hallucinations = append(f.hallucinations, normalize(p))
	}
	return f
}

// normalize lowercases, trims whitespace and strips trailing punctuation so
// "Yes." and "yes" compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".,!?;: ")
}

// Check runs the full rejection battery against one transcript. The first
// failing check wins; Accepted means the candidate may compete.
func (f *Filter) Check(text string, confidence float64) Disposition {
	if punctOnlyRe.MatchString(text) {
		return RejectedEmpty
	}
	if len(text) > f.cfg.MaxLength {
		return RejectedTooLong
	}

	norm := normalize(text)
	words := strings.Fields(norm)

	if len(words) > f.cfg.MaxWords {
		return RejectedTooLong
	}
	if len(norm) < f.cfg.MinLength || len(words) < f.cfg.MinWords {
		if _, ok := f.whitelist[norm]; !ok {
			return RejectedTooShort
		}
	}

	if f.cfg.EnableNoiseWordFilter {
		for _, p := range f.hallucinations {
			if strings.Contains(norm, p) {
				return RejectedHallucination
			}
		}
	}

	if f.cfg.EnableRepetitionFilter && repetitive(words, norm) {
		return RejectedRepetition
	}

	if f.cfg.EnableLanguageFilter && !mostlyLatin(text) {
		return RejectedLanguage
	}

	if confidence < f.cfg.MinConfidence {
		return RejectedConfidence
	}

	return Accepted
}

// Duplicate reports whether text is the same utterance as the previously
// emitted one, modulo case and trailing punctuation.
func Duplicate(text, lastEmitted string) bool {
	if lastEmitted == "" {
		return false
	}
	return normalize(text) == normalize(lastEmitted)
}

// repetitive detects looping ASR output: one word repeated over and over,
// a word dominating a longer transcript, or a phrase stuck on repeat.
func repetitive(words []string, norm string) bool {
	// a short transcript that is one word repeated
	if len(words) > 3 {
		same := true
		for _, w := range words[1:] {
			if w != words[0] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	if len(words) < 10 {
		return false
	}

	// any single word repeated more than three times, or above a quarter of
	// the transcript
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
		if counts[w] > 3 || counts[w]*4 > len(words) {
			return true
		}
	}

	// an opening two- or three-word phrase repeating more than twice
	for n := 2; n <= 3; n++ {
		for start := 0; start < 4 && start+n <= len(words); start++ {
			phrase := strings.Join(words[start:start+n], " ")
			seen := 0
			for i := 0; i+n <= len(words); i++ {
				if strings.Join(words[i:i+n], " ") == phrase {
					seen++
				}
			}
			if seen > 2 {
				return true
			}
		}
	}

	// the same sentence more than twice
	sentences := strings.FieldsFunc(norm, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	repeats := make(map[string]int, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		repeats[s]++
		if repeats[s] > 2 {
			return true
		}
	}

	return false
}

// mostlyLatin reports whether at least half of the letters in text are in
// the Latin script. Digit-only or letter-free transcripts pass.
func mostlyLatin(text string) bool {
	letters, latin := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Latin, r) {
				latin++
			}
		}
	}
	if letters == 0 {
		return true
	}
	return latin*2 >= letters
}
