package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Special tokens of the BERT uncased vocabulary family.
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// SpecialTokens lists the special tokens in the order BuildVocab assigns ids.
var SpecialTokens = []string{PadToken, UnkToken, ClsToken, SepToken, MaskToken}

// Vocab is an ordered token list; a token's id is its line number in vocab.txt.
type Vocab struct {
	tokens []string
	ids    map[string]int
}

// NewVocab indexes tokens. Duplicates keep their first id.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{tokens: make([]string, 0, len(tokens)), ids: make(map[string]int, len(tokens))}
	for _, t := range tokens {
		if _, dup := v.ids[t]; dup {
			continue
		}
		v.ids[t] = len(v.tokens)
		v.tokens = append(v.tokens, t)
	}
	return v
}

// ReadVocab parses one token per line.
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	return NewVocab(tokens), nil
}

// LoadVocab reads a vocab.txt file.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := ReadVocab(f)
	if err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	return v, nil
}

// Save writes the vocabulary as vocab.txt.
func (v *Vocab) Save(path string) error {
	var b strings.Builder
	for _, t := range v.tokens {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ID returns the id of tok.
func (v *Vocab) ID(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token with id, or "" when out of range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// Size is the number of distinct tokens.
func (v *Vocab) Size() int { return len(v.tokens) }

// BuildVocab derives a WordPiece vocabulary from a corpus: special tokens,
// then every character and its "##" continuation, then whole words seen at
// least minFreq times (most frequent first, ties alphabetical).
func BuildVocab(texts []string, minFreq int) *Vocab {
	if minFreq < 1 {
		minFreq = 1
	}
	words := map[string]int{}
	chars := map[string]struct{}{}
	for _, text := range texts {
		for _, w := range basicTokenize(text, true) {
			words[w]++
			for _, r := range w {
				chars[string(r)] = struct{}{}
			}
		}
	}

	charList := make([]string, 0, len(chars))
	for c := range chars {
		charList = append(charList, c)
	}
	sort.Strings(charList)

	type wc struct {
		w string
		n int
	}
	var wordList []wc
	for w, n := range words {
		if n >= minFreq && len([]rune(w)) > 1 {
			wordList = append(wordList, wc{w, n})
		}
	}
	sort.Slice(wordList, func(i, j int) bool {
		if wordList[i].n != wordList[j].n {
			return wordList[i].n > wordList[j].n
		}
		return wordList[i].w < wordList[j].w
	})

	tokens := append([]string{}, SpecialTokens...)
	tokens = append(tokens, charList...)
	for _, c := range charList {
		tokens = append(tokens, "##"+c)
	}
	for _, w := range wordList {
		tokens = append(tokens, w.w)
	}
	return NewVocab(tokens)
}
