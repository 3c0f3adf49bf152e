package matching

// BigramSimilarity is the Jaccard index of the character bigram sets of a and b.
// Strings too short to form a bigram only match themselves.
func BigramSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	x, y := bigrams(a), bigrams(b)
	if len(x) == 0 || len(y) == 0 {
		return 0
	}

	inter := 0
	for g := range x {
		if _, ok := y[g]; ok {
			inter++
		}
	}
	union := len(x) + len(y) - inter
	return float64(inter) / float64(union)
}

func bigrams(s string) map[[2]rune]struct{} {
	runes := []rune(s)
	set := make(map[[2]rune]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		set[[2]rune{runes[i], runes[i+1]}] = struct{}{}
	}
	return set
}
