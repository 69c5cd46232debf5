package arbiter

import "strings"

// Score rates a candidate transcript so competing results from overlapping
// chunks can be ranked. Longer, confident, sentence-shaped transcripts win;
// rambling or repetitive ones are penalized. Never negative.
func Score(text string, confidence float64) float64 {
	norm := normalize(text)
	words := strings.Fields(norm)
	wc := len(words)

	score := float64(wc * 5)
	if score > 100 {
		score = 100
	}

	score += confidence * 50

	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		score += 30
	}

	if wc >= 3 && wc <= 15 {
		score += 20
	}

	counts := make(map[string]int, wc)
	for _, w := range words {
		counts[w]++
	}
	for _, c := range counts {
		if c > 2 {
			score -= 50 * float64(c-2)
		}
	}

	if wc > 20 {
		score -= 10 * float64(wc-20)
	}

	if score < 0 {
		score = 0
	}
	return score
}
