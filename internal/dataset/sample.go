package dataset

import (
	"bytes"
	"embed"
)

//go:embed sample/*.jsonl
var sampleFS embed.FS

// Sample returns a small bundled copy of the emotion splits for offline runs.
func Sample() DatasetDict {
	out := DatasetDict{}
	for _, name := range DefaultSplits {
		b, err := sampleFS.ReadFile("sample/" + name + ".jsonl")
		if err != nil {
			panic(err)
		}
		s, err := ReadJSONL(bytes.NewReader(b))
		if err != nil {
			panic(err)
		}
		out[name] = s
	}
	return out
}
