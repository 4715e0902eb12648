package aibom

import (
	"fmt"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Validate checks that bom describes a publishable model: a named model
// component with a model card, and a dependency graph that only references
// components present in the BOM. It returns one message per problem.
func Validate(bom *cdx.BOM) []string {
	if bom == nil {
		return []string{"BOM is nil"}
	}
	var errs []string
	if bom.SerialNumber == "" {
		errs = append(errs, "BOM has no serial number")
	}
	if bom.Metadata == nil || bom.Metadata.Component == nil {
		return append(errs, "BOM has no model component")
	}

	m := bom.Metadata.Component
	if m.Name == "" {
		errs = append(errs, "model component: name is required")
	}
	if m.Type != cdx.ComponentTypeMachineLearningModel {
		errs = append(errs, fmt.Sprintf("model component %q: type is %q", m.Name, m.Type))
	}
	card := m.ModelCard
	if card == nil {
		return append(errs, fmt.Sprintf("model component %q: missing modelCard", m.Name))
	}
	if card.ModelParameters == nil || card.ModelParameters.Task == "" {
		errs = append(errs, fmt.Sprintf("model component %q: missing task", m.Name))
	}
	if card.ModelParameters == nil || card.ModelParameters.Inputs == nil || len(*card.ModelParameters.Inputs) == 0 {
		errs = append(errs, fmt.Sprintf("model component %q: missing inputs", m.Name))
	}
	if card.ModelParameters == nil || card.ModelParameters.Outputs == nil || len(*card.ModelParameters.Outputs) == 0 {
		errs = append(errs, fmt.Sprintf("model component %q: missing outputs", m.Name))
	}

	refs := map[string]bool{m.BOMRef: true}
	if bom.Components != nil {
		for i, c := range *bom.Components {
			if c.Name == "" {
				errs = append(errs, fmt.Sprintf("component[%d]: name is required", i))
			}
			refs[c.BOMRef] = true
		}
	}
	if bom.Dependencies != nil {
		for _, d := range *bom.Dependencies {
			if !refs[d.Ref] {
				errs = append(errs, fmt.Sprintf("dependency on unknown ref %q", d.Ref))
			}
			if d.Dependencies == nil {
				continue
			}
			for _, r := range *d.Dependencies {
				if !refs[r] {
					errs = append(errs, fmt.Sprintf("%s depends on unknown ref %q", d.Ref, r))
				}
			}
		}
	}
	return errs
}
