package aibom

import (
	"sort"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

const (
	ToolVendor = "idlab-discover"
	ToolName   = "emotune"
)

func addSerialNumber(bom *cdx.BOM, seed string) {
	if bom.SerialNumber != "" {
		return
	}
	id := uuid.New()
	if seed != "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed))
	}
	bom.SerialNumber = "urn:uuid:" + id.String()
}

func addTimestamp(bom *cdx.BOM, at time.Time) {
	if bom.Metadata.Timestamp != "" {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	bom.Metadata.Timestamp = at.Format(time.RFC3339)
}

func addTool(bom *cdx.BOM, name, version string) {
	if bom.Metadata.Tools == nil {
		bom.Metadata.Tools = &cdx.ToolsChoice{}
	}
	comp := cdx.Component{
		Type:         cdx.ComponentTypeApplication,
		Manufacturer: &cdx.OrganizationalEntity{Name: ToolVendor},
		Name:         name,
		Version:      version,
	}
	if bom.Metadata.Tools.Components == nil {
		bom.Metadata.Tools.Components = &[]cdx.Component{comp}
		return
	}
	components := append(*bom.Metadata.Tools.Components, comp)
	bom.Metadata.Tools.Components = &components
}

// purl builds a pkg:huggingface package URL; datasets use the "datasets"
// namespace. Segments keep their slash and have '@' and spaces escaped.
func purl(kind, id, version string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "unknown"
	}
	parts := strings.Split(id, "/")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "@", "%40")
		parts[i] = strings.ReplaceAll(p, " ", "%20")
	}
	base := "pkg:huggingface/" + strings.Join(parts, "/")
	if kind == "dataset" {
		base = "pkg:huggingface/datasets/" + strings.Join(parts, "/")
	}
	if version == "" {
		return base
	}
	return base + "@" + strings.ToLower(version)
}

func setPurlAndRef(c *cdx.Component) {
	if c.PackageURL == "" {
		kind := "model"
		if c.Type == cdx.ComponentTypeData {
			kind = "dataset"
		}
		c.PackageURL = purl(kind, c.Name, "")
	}
	if c.BOMRef == "" {
		c.BOMRef = c.PackageURL
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
