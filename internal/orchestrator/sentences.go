package orchestrator

// splitSentences cuts text at sentence terminators (., !, ?), keeping
// runs of terminators and any closing quotes with the sentence they
// end. Leading whitespace stays attached to the following sentence and
// a trailing fragment without a terminator becomes the final element,
// so concatenating the result always reproduces text exactly.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); {
		if !isTerminator(runes[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminator(runes[j]) || isClosingQuote(runes[j])) {
			j++
		}
		sentences = append(sentences, string(runes[start:j]))
		start = j
		i = j
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’':
		return true
	}
	return false
}
