package tokenizer

// maxInputCharsPerWord bounds the greedy search; longer words become [UNK].
const maxInputCharsPerWord = 100

// wordpiece splits a basic token into the longest vocabulary pieces, left to
// right, continuation pieces prefixed with "##". A word with any unmatched
// remainder maps to a single unk token.
func wordpiece(word string, v *Vocab, unk string) []string {
	runes := []rune(word)
	if len(runes) > maxInputCharsPerWord {
		return []string{unk}
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		cur := ""
		for start < end {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := v.ID(sub); ok {
				cur = sub
				break
			}
			end--
		}
		if cur == "" {
			return []string{unk}
		}
		pieces = append(pieces, cur)
		start = end
	}
	return pieces
}
