package arbiter

import "testing"

func testFilterConfig() FilterConfig {
	return FilterConfig{
		MinConfidence:          0.5,
		MinLength:              2,
		MaxLength:              300,
		MinWords:               2,
		MaxWords:               60,
		EnableNoiseWordFilter:  true,
		EnableRepetitionFilter: true,
		EnableLanguageFilter:   true,
		ShortWhitelist:         []string{"yes", "no", "okay", "stop"},
		HallucinationPhrases:   []string{"thank you for watching", "thanks for watching"},
	}
}

func TestFilter_Check(t *testing.T) {
	f := NewFilter(testFilterConfig())

	cases := []struct {
		name       string
		text       string
		confidence float64
		want       Disposition
	}{
		{"normal transcript", "turn on the kitchen lights", 0.9, Accepted},
		{"empty", "", 0.9, RejectedEmpty},
		{"punctuation only", " ... ?! ", 0.9, RejectedEmpty},
		{"single word not whitelisted", "banana", 0.9, RejectedTooShort},
		{"whitelisted short word", "Yes.", 0.9, Accepted},
		{"whitelisted is case insensitive", "OKAY", 0.9, Accepted},
		{"hallucination phrase", "Thank you for watching!", 0.9, RejectedHallucination},
		{"looping word", "Kathryn Kathryn Kathryn Kathryn Kathryn", 0.9, RejectedRepetition},
		{"low confidence", "this might be speech", 0.3, RejectedConfidence},
		{"wrong script", "это не латиница а кириллица честно", 0.9, RejectedLanguage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Check(tc.text, tc.confidence); got != tc.want {
				t.Errorf("Check(%q, %f) = %v, want %v", tc.text, tc.confidence, got, tc.want)
			}
		})
	}
}

func TestFilter_TooLong(t *testing.T) {
	f := NewFilter(testFilterConfig())

	long := make([]byte, 0, 320)
	for len(long) < 301 {
		long = append(long, "word "...)
	}
	if got := f.Check(string(long), 0.9); got != RejectedTooLong {
		t.Errorf("expected too-long rejection, got %v", got)
	}
}

func TestFilter_NoiseWordFilterDisabled(t *testing.T) {
	cfg := testFilterConfig()
	cfg.EnableNoiseWordFilter = false
	f := NewFilter(cfg)

	if got := f.Check("Thank you for watching!", 0.9); got != Accepted {
		t.Errorf("expected hallucination filter off, got %v", got)
	}
}

func TestFilter_RepetitionFilterDisabled(t *testing.T) {
	cfg := testFilterConfig()
	cfg.EnableRepetitionFilter = false
	f := NewFilter(cfg)

	if got := f.Check("Kathryn Kathryn Kathryn Kathryn Kathryn", 0.9); got != Accepted {
		t.Errorf("expected repetition filter off, got %v", got)
	}
}

func TestFilter_LanguageFilterDisabled(t *testing.T) {
	cfg := testFilterConfig()
	cfg.EnableLanguageFilter = false
	f := NewFilter(cfg)

	if got := f.Check("это не латиница а кириллица честно", 0.9); got != Accepted {
		t.Errorf("expected language filter off, got %v", got)
	}
}

func TestFilter_MaxWords(t *testing.T) {
	cfg := testFilterConfig()
	cfg.MaxWords = 5
	f := NewFilter(cfg)

	if got := f.Check("one two three four five six", 0.9); got != RejectedTooLong {
		t.Errorf("expected too-long rejection over the word cap, got %v", got)
	}
}

func TestFilter_WhitelistDisabledForWord(t *testing.T) {
	cfg := testFilterConfig()
	cfg.ShortWhitelist = nil
	f := NewFilter(cfg)

	if got := f.Check("Yes.", 0.9); got != RejectedTooShort {
		t.Errorf("expected short rejection without whitelist, got %v", got)
	}
}

func TestFilter_DominantWordInLongTranscript(t *testing.T) {
	f := NewFilter(testFilterConfig())

	// 4 of 12 words identical crosses the quarter share
	text := "so so the cat sat on so the mat again so today"
	if got := f.Check(text, 0.9); got != RejectedRepetition {
		t.Errorf("expected repetition rejection, got %v", got)
	}
}

func TestFilter_WordRepeatedOverThreeTimes(t *testing.T) {
	f := NewFilter(testFilterConfig())

	// "the" appears 4 times but only a fifth of the 20 words
	text := "the cat sat quietly while the dog ran far and the bird flew high above the fish swimming below today"
	if got := f.Check(text, 0.9); got != RejectedRepetition {
		t.Errorf("expected repetition rejection, got %v", got)
	}
}

func TestFilter_RepeatedOpeningPhrase(t *testing.T) {
	f := NewFilter(testFilterConfig())

	// "go home" three times, no single word over a quarter, no trigram loop
	text := "go home now and go home later and go home tomorrow friends"
	if got := f.Check(text, 0.9); got != RejectedRepetition {
		t.Errorf("expected repetition rejection, got %v", got)
	}
}

func TestFilter_SentenceRepeatedTwiceAccepted(t *testing.T) {
	f := NewFilter(testFilterConfig())

	text := "we can go there now. we can go there now."
	if got := f.Check(text, 0.9); got != Accepted {
		t.Errorf("expected two identical sentences accepted, got %v", got)
	}
}

func TestFilter_SentenceRepeatedThreeTimesRejected(t *testing.T) {
	f := NewFilter(testFilterConfig())

	text := "we can go there now. we can go there now. we can go there now."
	if got := f.Check(text, 0.9); got != RejectedRepetition {
		t.Errorf("expected repetition rejection, got %v", got)
	}
}

func TestFilter_EmbeddedHallucinationPhrase(t *testing.T) {
	f := NewFilter(testFilterConfig())

	text := "thank you for watching everyone see you soon"
	if got := f.Check(text, 0.9); got != RejectedHallucination {
		t.Errorf("expected hallucination rejection, got %v", got)
	}
}

func TestDuplicate(t *testing.T) {
	if !Duplicate("Thank you.", "thank you") {
		t.Error("expected match modulo case and trailing punctuation")
	}
	if Duplicate("thank you", "") {
		t.Error("expected no duplicate against empty history")
	}
	if Duplicate("hello there", "thank you") {
		t.Error("expected different texts to not match")
	}
}

func TestScore_Ordering(t *testing.T) {
	// a sentence-shaped confident transcript outscores a fragment
	full := Score("Please turn off the hallway lights.", 0.95)
	fragment := Score("hallway lights", 0.6)
	if full <= fragment {
		t.Errorf("expected full sentence %f to outscore fragment %f", full, fragment)
	}

	// repetition drags the score down
	clean := Score("the meeting starts at noon today", 0.8)
	loopy := Score("noon noon noon noon noon noon starts at noon today", 0.8)
	if loopy >= clean {
		t.Errorf("expected repetitive %f below clean %f", loopy, clean)
	}
}

func TestScore_NeverNegative(t *testing.T) {
	text := "word word word word word word word word word word word word"
	if s := Score(text, 0); s < 0 {
		t.Errorf("expected non-negative score, got %f", s)
	}
}

func TestScore_Components(t *testing.T) {
	// 5 words, conf 0.8, sentence end, in the 3..15 band, no penalties:
	// 25 + 40 + 30 + 20
	got := Score("the cat sat down quietly.", 0.8)
	if diff := got - 115; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score 115, got %f", got)
	}
}
