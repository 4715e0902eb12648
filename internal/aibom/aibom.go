// Package aibom builds the CycloneDX AI bill of materials published next to
// a fine-tuned model.
package aibom

import (
	"fmt"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// FileName is the BOM file inside the artifact directory.
const FileName = "aibom.json"

// Input describes the published model.
type Input struct {
	ModelID      string
	BaseModel    string
	Architecture string
	Dataset      string
	Accuracy     *float64
	Loss         *float64
	EvalSplit    string
	WeightsSHA   string
	UseCases     []string
	Limitations  []string
	Ethics       []string
	Properties   map[string]string

	// SerialSeed and Timestamp make the BOM reproducible: the same seed
	// yields the same serial number. Zero values use a random serial and
	// the current time.
	SerialSeed string
	Timestamp  time.Time
}

// Build assembles the BOM: metadata (serial, timestamp, tool, model
// component with its model card), base model and dataset components, and
// the dependency graph between them.
func Build(in Input) (*cdx.BOM, error) {
	if strings.TrimSpace(in.ModelID) == "" {
		return nil, fmt.Errorf("aibom: empty model id")
	}
	logf(in.ModelID, "build start")

	bom := cdx.NewBOM()
	bom.Metadata = &cdx.Metadata{}
	addSerialNumber(bom, in.SerialSeed)
	addTimestamp(bom, in.Timestamp)
	addTool(bom, ToolName, ToolVersion())

	model := modelComponent(in)
	bom.Metadata.Component = model

	var components []cdx.Component
	var deps []string
	if in.BaseModel != "" {
		base := cdx.Component{Type: cdx.ComponentTypeMachineLearningModel, Name: in.BaseModel}
		setPurlAndRef(&base)
		components = append(components, base)
		deps = append(deps, base.BOMRef)
	}
	if in.Dataset != "" {
		ds := cdx.Component{Type: cdx.ComponentTypeData, Name: in.Dataset}
		setPurlAndRef(&ds)
		components = append(components, ds)
		deps = append(deps, ds.BOMRef)
	}
	if len(components) > 0 {
		bom.Components = &components
		bom.Dependencies = &[]cdx.Dependency{{Ref: model.BOMRef, Dependencies: &deps}}
	}
	logf(in.ModelID, "build ok (components=%d)", len(components)+1)
	return bom, nil
}

func modelComponent(in Input) *cdx.Component {
	c := &cdx.Component{
		Type:      cdx.ComponentTypeMachineLearningModel,
		Name:      in.ModelID,
		ModelCard: modelCard(in),
	}
	if in.WeightsSHA != "" {
		c.Hashes = &[]cdx.Hash{{Algorithm: cdx.HashAlgoSHA256, Value: in.WeightsSHA}}
	}
	if len(in.Properties) > 0 {
		props := make([]cdx.Property, 0, len(in.Properties))
		for _, k := range sortedKeys(in.Properties) {
			props = append(props, cdx.Property{Name: k, Value: in.Properties[k]})
		}
		c.Properties = &props
	}
	setPurlAndRef(c)
	return c
}

func modelCard(in Input) *cdx.MLModelCard {
	inputs := []cdx.MLInputOutputParameters{{Format: "string"}}
	outputs := []cdx.MLInputOutputParameters{{Format: "string"}}
	mp := &cdx.MLModelParameters{
		Approach:           &cdx.MLModelParametersApproach{Type: cdx.MLModelParametersApproachTypeSupervised},
		Task:               "text-classification",
		ArchitectureFamily: "linear",
		ModelArchitecture:  in.Architecture,
		Inputs:             &inputs,
		Outputs:            &outputs,
	}
	if in.Dataset != "" {
		mp.Datasets = &[]cdx.MLDatasetChoice{{Ref: purl("dataset", in.Dataset, "")}}
	}
	card := &cdx.MLModelCard{ModelParameters: mp}

	var perf []cdx.MLPerformanceMetric
	if in.Accuracy != nil {
		perf = append(perf, cdx.MLPerformanceMetric{Type: "accuracy", Value: fmt.Sprintf("%.4f", *in.Accuracy), Slice: in.EvalSplit})
	}
	if in.Loss != nil {
		perf = append(perf, cdx.MLPerformanceMetric{Type: "loss", Value: fmt.Sprintf("%.4f", *in.Loss), Slice: in.EvalSplit})
	}
	if len(perf) > 0 {
		card.QuantitativeAnalysis = &cdx.MLQuantitativeAnalysis{PerformanceMetrics: &perf}
	}

	cons := &cdx.MLModelCardConsiderations{}
	if len(in.UseCases) > 0 {
		uc := append([]string(nil), in.UseCases...)
		cons.UseCases = &uc
	}
	if len(in.Limitations) > 0 {
		tl := append([]string(nil), in.Limitations...)
		cons.TechnicalLimitations = &tl
	}
	if len(in.Ethics) > 0 {
		ethics := make([]cdx.MLModelCardEthicalConsideration, 0, len(in.Ethics))
		for _, e := range in.Ethics {
			ethics = append(ethics, cdx.MLModelCardEthicalConsideration{Name: e})
		}
		cons.EthicalConsiderations = &ethics
	}
	if cons.UseCases != nil || cons.TechnicalLimitations != nil || cons.EthicalConsiderations != nil {
		card.Considerations = cons
	}
	return card
}
