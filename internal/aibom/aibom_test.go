package aibom

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

func testInput() Input {
	acc := 0.91
	return Input{
		ModelID:      "tester/emotion-model",
		BaseModel:    "distilbert-base-uncased",
		Architecture: "LinearHeadForSequenceClassification",
		Dataset:      "emotion",
		Accuracy:     &acc,
		EvalSplit:    "validation",
		WeightsSHA:   "abc123",
		UseCases:     []string{"emotion classification"},
		Ethics:       []string{"not for decisions about individuals"},
		Properties:   map[string]string{"b": "2", "a": "1"},
	}
}

func TestBuild(t *testing.T) {
	bom, err := Build(testInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(bom.SerialNumber, "urn:uuid:") {
		t.Fatalf("serial = %q", bom.SerialNumber)
	}
	if bom.Metadata.Timestamp == "" {
		t.Fatal("missing timestamp")
	}
	tools := *bom.Metadata.Tools.Components
	if len(tools) != 1 || tools[0].Name != ToolName {
		t.Fatalf("tools = %+v", tools)
	}

	m := bom.Metadata.Component
	if m.Type != cdx.ComponentTypeMachineLearningModel || m.PackageURL != "pkg:huggingface/tester/emotion-model" {
		t.Fatalf("model component = %+v", m)
	}
	if m.ModelCard.ModelParameters.Task != "text-classification" {
		t.Fatalf("task = %q", m.ModelCard.ModelParameters.Task)
	}
	ds := *m.ModelCard.ModelParameters.Datasets
	if ds[0].Ref != "pkg:huggingface/datasets/emotion" {
		t.Fatalf("dataset ref = %q", ds[0].Ref)
	}
	perf := *m.ModelCard.QuantitativeAnalysis.PerformanceMetrics
	if perf[0].Type != "accuracy" || perf[0].Value != "0.9100" {
		t.Fatalf("metrics = %+v", perf)
	}
	props := *m.Properties
	if props[0].Name != "a" || props[1].Name != "b" {
		t.Fatalf("properties not sorted: %+v", props)
	}

	if bom.Components == nil || len(*bom.Components) != 2 {
		t.Fatalf("components = %v", bom.Components)
	}
	deps := *bom.Dependencies
	if deps[0].Ref != m.BOMRef || len(*deps[0].Dependencies) != 2 {
		t.Fatalf("dependencies = %+v", deps)
	}
}

func TestBuild_RequiresModelID(t *testing.T) {
	if _, err := Build(Input{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteRead(t *testing.T) {
	bom, err := Build(testInput())
	if err != nil {
		t.Fatal(err)
	}
	path, err := Write(bom, t.TempDir())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.SerialNumber != bom.SerialNumber || got.Metadata.Component.Name != "tester/emotion-model" {
		t.Fatalf("round trip = %+v", got.Metadata.Component)
	}
}

func TestPurl(t *testing.T) {
	tests := []struct {
		kind, id, version, want string
	}{
		{"model", "org/name", "", "pkg:huggingface/org/name"},
		{"dataset", "emotion", "", "pkg:huggingface/datasets/emotion"},
		{"model", "a b@c", "ABC", "pkg:huggingface/a%20b%40c@abc"},
		{"model", "", "", "pkg:huggingface/unknown"},
	}
	for _, tt := range tests {
		if got := purl(tt.kind, tt.id, tt.version); got != tt.want {
			t.Errorf("purl(%q, %q, %q) = %q, want %q", tt.kind, tt.id, tt.version, got, tt.want)
		}
	}
}

func TestToolVersion(t *testing.T) {
	orig, origRead := Version, readBuildInfo
	defer func() { Version, readBuildInfo = orig, origRead }()

	Version = "v1.2.3"
	if got := ToolVersion(); got != "v1.2.3" {
		t.Fatalf("ToolVersion = %q", got)
	}
	Version = ""
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, true
	}
	if got := ToolVersion(); got != "v0.4.0" {
		t.Fatalf("ToolVersion = %q", got)
	}
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got := ToolVersion(); got != "devel" {
		t.Fatalf("ToolVersion = %q", got)
	}
}

func TestBuild_Reproducible(t *testing.T) {
	in := testInput()
	in.SerialSeed = "tester/emotion-model@abc123"
	in.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	dirA, dirB := t.TempDir(), t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		bom, err := Build(in)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Write(bom, dir); err != nil {
			t.Fatal(err)
		}
	}
	a, _ := os.ReadFile(filepath.Join(dirA, FileName))
	b, _ := os.ReadFile(filepath.Join(dirB, FileName))
	if !bytes.Equal(a, b) {
		t.Fatal("same input produced different aibom.json bytes")
	}
}

func TestValidate(t *testing.T) {
	bom, err := Build(testInput())
	if err != nil {
		t.Fatal(err)
	}
	if errs := Validate(bom); len(errs) != 0 {
		t.Fatalf("built BOM has problems: %v", errs)
	}

	tests := []struct {
		name   string
		mutate func(*cdx.BOM)
		want   string
	}{
		{"no serial", func(b *cdx.BOM) { b.SerialNumber = "" }, "serial number"},
		{"no model", func(b *cdx.BOM) { b.Metadata.Component = nil }, "no model component"},
		{"no card", func(b *cdx.BOM) { b.Metadata.Component.ModelCard = nil }, "missing modelCard"},
		{"no task", func(b *cdx.BOM) { b.Metadata.Component.ModelCard.ModelParameters.Task = "" }, "missing task"},
		{"dangling dependency", func(b *cdx.BOM) {
			deps := append(*(*b.Dependencies)[0].Dependencies, "pkg:huggingface/ghost")
			(*b.Dependencies)[0].Dependencies = &deps
		}, `unknown ref "pkg:huggingface/ghost"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Build(testInput())
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(b)
			errs := Validate(b)
			if len(errs) == 0 || !strings.Contains(strings.Join(errs, "\n"), tt.want) {
				t.Fatalf("Validate = %v, want a problem containing %q", errs, tt.want)
			}
		})
	}
	if errs := Validate(nil); len(errs) != 1 {
		t.Fatalf("Validate(nil) = %v", errs)
	}
}
