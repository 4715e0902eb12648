// Package tokenizer implements the BERT-uncased WordPiece encoder used to turn
// raw text into fixed-width token id and attention mask sequences.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxLength is the padded/truncated sequence width.
const DefaultMaxLength = 128

// File names written by Save, matching the hub layout of BERT tokenizers.
const (
	VocabFile         = "vocab.txt"
	ConfigFile        = "tokenizer_config.json"
	SpecialTokensFile = "special_tokens_map.json"
)

// Encoding is one encoded example. Both slices have length MaxLength.
type Encoding struct {
	InputIDs      []int `json:"input_ids"`
	AttentionMask []int `json:"attention_mask"`
}

// Len returns the number of real (unpadded) tokens.
func (e Encoding) Len() int {
	n := 0
	for _, m := range e.AttentionMask {
		n += m
	}
	return n
}

// Tokenizer is deterministic and stateless given its vocabulary.
type Tokenizer struct {
	Vocab       *Vocab
	MaxLength   int
	DoLowerCase bool

	padID, unkID, clsID, sepID int
}

// New builds a tokenizer over v. maxLength <= 0 selects DefaultMaxLength;
// it must leave room for [CLS] and [SEP].
func New(v *Vocab, maxLength int) (*Tokenizer, error) {
	if v == nil {
		return nil, fmt.Errorf("nil vocabulary")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if maxLength < 2 {
		return nil, fmt.Errorf("max_length %d leaves no room for [CLS] and [SEP]", maxLength)
	}
	t := &Tokenizer{Vocab: v, MaxLength: maxLength, DoLowerCase: true}
	for tok, dst := range map[string]*int{PadToken: &t.padID, UnkToken: &t.unkID, ClsToken: &t.clsID, SepToken: &t.sepID} {
		id, ok := v.ID(tok)
		if !ok {
			return nil, fmt.Errorf("vocabulary has no %s token", tok)
		}
		*dst = id
	}
	return t, nil
}

// PadID returns the id used for right padding.
func (t *Tokenizer) PadID() int { return t.padID }

// Tokenize returns the WordPiece tokens of text without special tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	var out []string
	for _, w := range basicTokenize(text, t.DoLowerCase) {
		out = append(out, wordpiece(w, t.Vocab, UnkToken)...)
	}
	return out
}

// Encode maps text to [CLS] tokens [SEP], truncated on the right to MaxLength
// and padded on the right with [PAD]. Empty text yields [CLS][SEP] + padding.
func (t *Tokenizer) Encode(text string) Encoding {
	tokens := t.Tokenize(text)
	if room := t.MaxLength - 2; len(tokens) > room {
		tokens = tokens[:room]
	}

	enc := Encoding{
		InputIDs:      make([]int, t.MaxLength),
		AttentionMask: make([]int, t.MaxLength),
	}
	enc.InputIDs[0], enc.AttentionMask[0] = t.clsID, 1
	i := 1
	for _, tok := range tokens {
		id, ok := t.Vocab.ID(tok)
		if !ok {
			id = t.unkID
		}
		enc.InputIDs[i], enc.AttentionMask[i] = id, 1
		i++
	}
	enc.InputIDs[i], enc.AttentionMask[i] = t.sepID, 1
	for i++; i < t.MaxLength; i++ {
		enc.InputIDs[i] = t.padID
	}
	return enc
}

// EncodeBatch encodes every text; all encodings share the same length.
func (t *Tokenizer) EncodeBatch(texts []string) []Encoding {
	out := make([]Encoding, len(texts))
	for i, s := range texts {
		out[i] = t.Encode(s)
	}
	return out
}

// Decode joins tokens back into text, merging "##" continuations.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) string {
	var words []string
	for _, id := range ids {
		tok := t.Vocab.Token(id)
		if skipSpecial && isSpecial(tok) {
			continue
		}
		if strings.HasPrefix(tok, "##") && len(words) > 0 {
			words[len(words)-1] += strings.TrimPrefix(tok, "##")
			continue
		}
		words = append(words, tok)
	}
	return strings.Join(words, " ")
}

func isSpecial(tok string) bool {
	for _, s := range SpecialTokens {
		if tok == s {
			return true
		}
	}
	return false
}

type configJSON struct {
	DoLowerCase    bool    `json:"do_lower_case"`
	ModelMaxLength float64 `json:"model_max_length"`
	TokenizerClass string  `json:"tokenizer_class"`
	PadToken       string  `json:"pad_token"`
	UnkToken       string  `json:"unk_token"`
	ClsToken       string  `json:"cls_token"`
	SepToken       string  `json:"sep_token"`
	MaskToken      string  `json:"mask_token"`
}

// Save writes vocab.txt, tokenizer_config.json and special_tokens_map.json.
func (t *Tokenizer) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := t.Vocab.Save(filepath.Join(dir, VocabFile)); err != nil {
		return err
	}
	cfg := configJSON{
		DoLowerCase:    t.DoLowerCase,
		ModelMaxLength: float64(t.MaxLength),
		TokenizerClass: "DistilBertTokenizer",
		PadToken:       PadToken,
		UnkToken:       UnkToken,
		ClsToken:       ClsToken,
		SepToken:       SepToken,
		MaskToken:      MaskToken,
	}
	if err := writeJSON(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return err
	}
	special := map[string]string{
		"pad_token": PadToken, "unk_token": UnkToken, "cls_token": ClsToken,
		"sep_token": SepToken, "mask_token": MaskToken,
	}
	return writeJSON(filepath.Join(dir, SpecialTokensFile), special)
}

// Load reads a tokenizer saved by Save (or downloaded from the hub).
// maxLength > 0 overrides the stored model_max_length.
func Load(dir string, maxLength int) (*Tokenizer, error) {
	v, err := LoadVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}
	cfg := configJSON{DoLowerCase: true}
	if b, err := os.ReadFile(filepath.Join(dir, ConfigFile)); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ConfigFile, err)
		}
	}
	// An explicit maxLength wins. The stored value is only trusted up to 512:
	// hub configs often carry a huge sentinel instead.
	if maxLength <= 0 && cfg.ModelMaxLength > 0 && cfg.ModelMaxLength <= 512 {
		maxLength = int(cfg.ModelMaxLength)
	}
	t, err := New(v, maxLength)
	if err != nil {
		return nil, err
	}
	t.DoLowerCase = cfg.DoLowerCase
	return t, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
