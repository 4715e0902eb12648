package tokenizer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/hub/hubtest"
)

func testVocab() *Vocab {
	return NewVocab([]string{
		PadToken, UnkToken, ClsToken, SepToken, MaskToken,
		"i", "feel", "happy", "sad", "un", "##believ", "##able", "!", "cafe", ".",
	})
}

func mustNew(t *testing.T, maxLength int) *Tokenizer {
	t.Helper()
	tok, err := New(testVocab(), maxLength)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tok
}

func TestTokenize(t *testing.T) {
	tok := mustNew(t, 16)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "I FEEL Happy", []string{"i", "feel", "happy"}},
		{"splits punctuation", "happy!", []string{"happy", "!"}},
		{"wordpiece continuation", "unbelievable", []string{"un", "##believ", "##able"}},
		{"unknown word", "xyz", []string{UnkToken}},
		{"strips accents", "Café.", []string{"cafe", "."}},
		{"collapses whitespace", "  i \t\n sad ", []string{"i", "sad"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode_FixedLengthAndMask(t *testing.T) {
	tok := mustNew(t, 8)
	enc := tok.Encode("i feel happy")

	want := []int{2, 5, 6, 7, 3, 0, 0, 0}
	if !reflect.DeepEqual(enc.InputIDs, want) {
		t.Fatalf("InputIDs = %v, want %v", enc.InputIDs, want)
	}
	wantMask := []int{1, 1, 1, 1, 1, 0, 0, 0}
	if !reflect.DeepEqual(enc.AttentionMask, wantMask) {
		t.Fatalf("AttentionMask = %v, want %v", enc.AttentionMask, wantMask)
	}
	if enc.Len() != 5 {
		t.Fatalf("Len = %d, want 5", enc.Len())
	}
}

func TestEncode_EmptyTextIsValid(t *testing.T) {
	tok := mustNew(t, 4)
	enc := tok.Encode("")
	if !reflect.DeepEqual(enc.InputIDs, []int{2, 3, 0, 0}) {
		t.Fatalf("InputIDs = %v", enc.InputIDs)
	}
	if enc.Len() != 2 {
		t.Fatalf("Len = %d, want 2", enc.Len())
	}
}

func TestEncode_TruncatesKeepingSep(t *testing.T) {
	tok := mustNew(t, 5)
	enc := tok.Encode("i feel happy i feel sad")
	if len(enc.InputIDs) != 5 {
		t.Fatalf("len = %d, want 5", len(enc.InputIDs))
	}
	if enc.InputIDs[0] != 2 || enc.InputIDs[4] != 3 {
		t.Fatalf("InputIDs = %v, want [CLS] ... [SEP]", enc.InputIDs)
	}
	for _, m := range enc.AttentionMask {
		if m != 1 {
			t.Fatalf("AttentionMask = %v, want all ones", enc.AttentionMask)
		}
	}
}

func TestEncodeBatch_Deterministic(t *testing.T) {
	tok := mustNew(t, 12)
	texts := []string{"i feel happy", "unbelievable!", "", "sad sad sad"}
	a := tok.EncodeBatch(texts)
	b := tok.EncodeBatch(texts)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("EncodeBatch is not deterministic")
	}
	for i, e := range a {
		if len(e.InputIDs) != 12 || len(e.AttentionMask) != 12 {
			t.Fatalf("encoding %d has lengths %d/%d", i, len(e.InputIDs), len(e.AttentionMask))
		}
	}
}

func TestDecode(t *testing.T) {
	tok := mustNew(t, 10)
	enc := tok.Encode("unbelievable happy")
	if got := tok.Decode(enc.InputIDs, true); got != "unbelievable happy" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestNew_RequiresSpecialTokens(t *testing.T) {
	if _, err := New(NewVocab([]string{"a", "b"}), 8); err == nil {
		t.Fatal("expected error for vocabulary without special tokens")
	}
	if _, err := New(testVocab(), 1); err == nil {
		t.Fatal("expected error for max_length 1")
	}
}

func TestBuildVocab(t *testing.T) {
	v := BuildVocab([]string{"happy happy joy", "sad"}, 1)
	for i, s := range SpecialTokens {
		if got := v.Token(i); got != s {
			t.Fatalf("Token(%d) = %q, want %q", i, got, s)
		}
	}
	for _, want := range []string{"h", "##h", "happy", "joy", "sad"} {
		if _, ok := v.ID(want); !ok {
			t.Errorf("vocab missing %q", want)
		}
	}
	hi, _ := v.ID("happy")
	ji, _ := v.ID("joy")
	if hi > ji {
		t.Errorf("more frequent word should come first: happy=%d joy=%d", hi, ji)
	}

	tok, err := New(v, 16)
	if err != nil {
		t.Fatal(err)
	}
	// Unseen words decompose into character pieces instead of [UNK].
	if got := tok.Tokenize("ash"); got[0] == UnkToken {
		t.Fatalf("Tokenize(ash) = %v", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tok := mustNew(t, 16)
	if err := tok.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, f := range []string{VocabFile, ConfigFile, SpecialTokensFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}
	loaded, err := Load(dir, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MaxLength != 16 || loaded.Vocab.Size() != tok.Vocab.Size() {
		t.Fatalf("loaded max_length=%d size=%d", loaded.MaxLength, loaded.Vocab.Size())
	}
	if !reflect.DeepEqual(loaded.Encode("i feel sad"), tok.Encode("i feel sad")) {
		t.Fatal("loaded tokenizer encodes differently")
	}
}

func TestLoad_ExplicitMaxLengthKept(t *testing.T) {
	dir := t.TempDir()
	tok := mustNew(t, 600)
	if err := tok.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir, 600)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MaxLength != 600 {
		t.Fatalf("MaxLength = %d, want 600", loaded.MaxLength)
	}
	if got := len(loaded.Encode("i feel sad").InputIDs); got != 600 {
		t.Fatalf("encoded length = %d, want 600", got)
	}
}

func TestLoad_SentinelModelMaxLength(t *testing.T) {
	dir := t.TempDir()
	if err := mustNew(t, 16).Save(dir); err != nil {
		t.Fatal(err)
	}
	cfg := []byte(`{"do_lower_case": true, "model_max_length": 1000000000000000019884624838656}`)
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), cfg, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MaxLength != DefaultMaxLength {
		t.Fatalf("MaxLength = %d, want %d", loaded.MaxLength, DefaultMaxLength)
	}
}

func TestFromPretrained(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()

	vocab := strings.Join([]string{PadToken, UnkToken, ClsToken, SepToken, MaskToken, "hello"}, "\n") + "\n"
	srv.PutFile("distilbert-base-uncased", VocabFile, []byte(vocab))

	c := hub.NewClient(5*time.Second, "")
	c.BaseURL = srv.URL

	var logs bytes.Buffer
	SetLogger(&logs)
	defer SetLogger(nil)

	cache := t.TempDir()
	tok, err := FromPretrained(context.Background(), c, "distilbert-base-uncased", "", cache, 0)
	if err != nil {
		t.Fatalf("FromPretrained: %v", err)
	}
	if tok.MaxLength != DefaultMaxLength {
		t.Fatalf("MaxLength = %d, want %d", tok.MaxLength, DefaultMaxLength)
	}
	if got := tok.Tokenize("Hello"); !reflect.DeepEqual(got, []string{"hello"}) {
		t.Fatalf("Tokenize = %v", got)
	}

	before := srv.Requests()
	if _, err := FromPretrained(context.Background(), c, "distilbert-base-uncased", "", cache, 0); err != nil {
		t.Fatalf("cached FromPretrained: %v", err)
	}
	if srv.Requests() != before {
		t.Fatal("cached load should not hit the network")
	}
	if !strings.Contains(logs.String(), "cached") {
		t.Fatalf("expected cache log, got %q", logs.String())
	}
}
