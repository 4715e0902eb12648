// Package modelcard renders the README.md model card published with a model.
// Rendering is a pure function of Data; no placeholder is validated.
package modelcard

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	yaml "go.yaml.in/yaml/v3"
)

// FileName is the model card file inside a repository.
const FileName = "README.md"

// Hyperparameter is one row of the training procedure table.
type Hyperparameter struct {
	Name  string
	Value string
}

// Result is one evaluation row.
type Result struct {
	Split    string
	Loss     float64
	Accuracy float64
	Samples  int
}

// Data holds every placeholder of the card.
type Data struct {
	ModelID         string
	BaseModel       string
	Architecture    string
	Dataset         string
	DatasetConfig   string
	License         string
	Language        string
	Labels          []string
	Hyperparameters []Hyperparameter
	Results         []Result
	TrainingData    string
	IntendedUse     string
	Limitations     string
	Ethics          string
	Hardware        string
	Software        string
}

// Defaults fills the descriptive sections that are the same for every
// emotion model. Fields already set are kept.
func (d Data) Defaults() Data {
	if d.License == "" {
		d.License = "apache-2.0"
	}
	if d.Language == "" {
		d.Language = "en"
	}
	if d.TrainingData == "" {
		d.TrainingData = fmt.Sprintf("The model was trained on the `%s` dataset: English tweets labeled with one of six basic emotions.", d.Dataset)
	}
	if d.IntendedUse == "" {
		d.IntendedUse = "Classifying short English texts into one of six emotions for research, content analysis and prototyping."
	}
	if d.Limitations == "" {
		d.Limitations = "The training data is short social media text in English. Predictions on other languages, long documents or domain-specific text are unreliable. The label set is fixed; mixed or neutral emotions are forced into one of six classes."
	}
	if d.Ethics == "" {
		d.Ethics = "Emotion predictions must not be used to make decisions about individuals. The dataset may carry demographic and cultural biases of its annotators."
	}
	return d
}

type taskRef struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

type datasetRef struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Config string `yaml:"config,omitempty"`
	Split  string `yaml:"split"`
}

type metricRef struct {
	Type  string  `yaml:"type"`
	Value float64 `yaml:"value"`
	Name  string  `yaml:"name"`
}

type indexResult struct {
	Task    taskRef     `yaml:"task"`
	Dataset datasetRef  `yaml:"dataset"`
	Metrics []metricRef `yaml:"metrics"`
}

type modelIndex struct {
	Name    string        `yaml:"name"`
	Results []indexResult `yaml:"results"`
}

// FrontMatter is the YAML header of the card.
type FrontMatter struct {
	License     string       `yaml:"license,omitempty"`
	Language    []string     `yaml:"language,omitempty"`
	BaseModel   string       `yaml:"base_model,omitempty"`
	Tags        []string     `yaml:"tags,omitempty"`
	Datasets    []string     `yaml:"datasets,omitempty"`
	Metrics     []string     `yaml:"metrics,omitempty"`
	PipelineTag string       `yaml:"pipeline_tag,omitempty"`
	ModelIndex  []modelIndex `yaml:"model-index,omitempty"`
}

func frontMatter(d Data) FrontMatter {
	fm := FrontMatter{
		License:     d.License,
		BaseModel:   d.BaseModel,
		Tags:        []string{"text-classification", "emotion", "generated_from_trainer"},
		Metrics:     []string{"accuracy"},
		PipelineTag: "text-classification",
	}
	if d.Language != "" {
		fm.Language = []string{d.Language}
	}
	if d.Dataset != "" {
		fm.Datasets = []string{d.Dataset}
	}
	if len(d.Results) > 0 {
		mi := modelIndex{Name: d.ModelID}
		for _, r := range d.Results {
			mi.Results = append(mi.Results, indexResult{
				Task:    taskRef{Type: "text-classification", Name: "Text Classification"},
				Dataset: datasetRef{Name: d.Dataset, Type: d.Dataset, Config: d.DatasetConfig, Split: r.Split},
				Metrics: []metricRef{{Type: "accuracy", Value: r.Accuracy, Name: "Accuracy"}},
			})
		}
		fm.ModelIndex = []modelIndex{mi}
	}
	return fm
}

var body = template.Must(template.New("card").Parse(`# {{ .ModelID }}

This model is a fine-tuned version of [{{ .BaseModel }}](https://huggingface.co/{{ .BaseModel }}) on the {{ .Dataset }} dataset.
{{- with .Results }}
It achieves the following results on the evaluation set:
{{ range . }}
- Split: {{ .Split }}, Loss: {{ printf "%.4f" .Loss }}, Accuracy: {{ printf "%.4f" .Accuracy }}
{{- end }}
{{- end }}

## Model description

Architecture: {{ .Architecture }}

Labels:
{{ range $i, $l := .Labels }}
- {{ $i }}: {{ $l }}
{{- end }}

## Training data

{{ .TrainingData }}

## Training procedure

### Training hyperparameters

The following hyperparameters were used during training:
{{ range .Hyperparameters }}
- {{ .Name }}: {{ .Value }}
{{- end }}

## Evaluation results

| Split | Loss | Accuracy | Samples |
|:-----:|:----:|:--------:|:-------:|
{{- range .Results }}
| {{ .Split }} | {{ printf "%.4f" .Loss }} | {{ printf "%.4f" .Accuracy }} | {{ .Samples }} |
{{- end }}

## Intended uses

{{ .IntendedUse }}

## Limitations

{{ .Limitations }}

## Hardware and software

- Hardware: {{ .Hardware }}
- Software: {{ .Software }}

## Ethical considerations

{{ .Ethics }}
`))

// Render returns the full card text: YAML front matter followed by the
// Markdown body.
func Render(d Data) (string, error) {
	fm, err := yaml.Marshal(frontMatter(d))
	if err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	if err := body.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render model card: %w", err)
	}
	return buf.String(), nil
}

// Write renders d into dir/README.md and returns the path.
func Write(dir string, d Data) (string, error) {
	text, err := Render(d)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Card is a parsed README.md.
type Card struct {
	FrontMatter FrontMatter
	Body        string
}

// Parse splits raw into front matter and body. Text without front matter
// yields an empty FrontMatter and the whole text as body.
func Parse(raw string) (*Card, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if !strings.HasPrefix(raw, "---\n") {
		return &Card{Body: raw}, nil
	}
	rest := strings.TrimPrefix(raw, "---\n")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, fmt.Errorf("unterminated front matter")
	}
	c := &Card{Body: strings.TrimSpace(strings.TrimPrefix(rest[idx:], "\n---"))}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &c.FrontMatter); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	return c, nil
}

// Accuracy returns the first accuracy value of the model-index, if any.
func (c *Card) Accuracy() (float64, bool) {
	for _, mi := range c.FrontMatter.ModelIndex {
		for _, r := range mi.Results {
			for _, m := range r.Metrics {
				if m.Type == "accuracy" {
					return m.Value, true
				}
			}
		}
	}
	return 0, false
}
