package card

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// BaseTags are always present, in this order.
var BaseTags = []string{"synthetic", "distilabel", "rlaif"}

// Metadata is the YAML header of a dataset card.
type Metadata struct {
	SizeCategories string   `yaml:"size_categories" json:"size_categories"`
	Tags           []string `yaml:"tags" json:"tags"`
}

// YAML renders the metadata as a YAML document ending in a newline.
func (m Metadata) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("encode card metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode card metadata: %w", err)
	}
	return buf.String(), nil
}

// Section is a markdown heading of the card body.
type Section struct {
	Level int
	Title string
}

// Card is a dataset card: YAML metadata plus a markdown body.
type Card struct {
	Metadata Metadata
	Body     string
	// Sections is filled by Parse.
	Sections []Section
}

// String renders the card as front matter followed by the body.
func (c *Card) String() string {
	header, err := c.Metadata.YAML()
	if err != nil {
		// Metadata holds only strings; encoding cannot fail.
		panic(err)
	}
	return "---\n" + header + "---\n" + c.Body
}

// SplitSummary describes one split of a step.
type SplitSummary struct {
	Name string
	Rows int
}

// StepSummary describes one step of the distiset.
type StepSummary struct {
	Name string
	// Rows is the row count of the step; for a split step the sum of its
	// splits.
	Rows    int
	Splits  []SplitSummary
	Columns []string
	// Example is one record shown on the card. Nil omits the example.
	Example map[string]any
}

// Input is everything Generate needs.
type Input struct {
	RepoID string
	Steps  []StepSummary
	// Artifacts maps step name to per-artifact metadata, each with a "name"
	// entry.
	Artifacts    map[string][]map[string]any
	ExtraTags    []string
	HasPipeline  bool
	PipelineName string
}

// Generate builds the card for in. The size category comes from the largest
// step.
func Generate(in Input) (*Card, error) {
	var largest int
	for _, s := range in.Steps {
		if s.Rows > largest {
			largest = s.Rows
		}
	}

	c := &Card{
		Metadata: Metadata{
			SizeCategories: SizeCategory(int64(largest)),
			Tags:           mergeTags(BaseTags, in.ExtraTags),
		},
	}

	body, err := renderBody(in)
	if err != nil {
		return nil, err
	}
	c.Body = body
	return c, nil
}

func mergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// =============================================================================
// body
// =============================================================================

type stepView struct {
	StepSummary
	ExampleJSON string
}

type artifactView struct {
	Name   string
	Fields []field
}

type field struct {
	Key   string
	Value string
}

type stepArtifacts struct {
	Step      string
	Artifacts []artifactView
}

type bodyView struct {
	Title        string
	RepoID       string
	HasPipeline  bool
	PipelineName string
	Steps        []stepView
	Artifacts    []stepArtifacts
}

var bodyTemplate = template.Must(template.New("card").Parse(`
<p align="left">
  <a href="https://github.com/argilla-io/distilabel">
    <img src="https://raw.githubusercontent.com/argilla-io/distilabel/main/docs/assets/distilabel-badge-light.png" alt="Built with Distilabel" width="200" height="32"/>
  </a>
</p>

# Dataset Card for {{.Title}}

This dataset has been created with [distilabel](https://distilabel.argilla.io/).
{{if .PipelineName}}
It was produced by the pipeline ` + "`{{.PipelineName}}`" + `.
{{end}}
## Dataset Summary
{{if .HasPipeline}}
This dataset contains a ` + "`pipeline.yaml`" + ` which can be used to reproduce the pipeline that generated it in distilabel using the ` + "`distilabel`" + ` CLI:

` + "```console" + `
distilabel pipeline run --config "{{.RepoID}}/.distiset/pipeline.yaml"
` + "```" + `

or explore the configuration:

` + "```console" + `
distilabel pipeline info --config "{{.RepoID}}/.distiset/pipeline.yaml"
` + "```" + `
{{else}}
The pipeline configuration that generated this dataset was not bundled with it.
{{end}}
## Dataset structure

The examples have the following structure per configuration:
{{range .Steps}}
### Configuration: {{.Name}}

- Rows: {{.Rows}}
{{- if .Splits}}
- Splits:{{range .Splits}} ` + "`{{.Name}}`" + ` ({{.Rows}}){{end}}
{{- end}}
{{- if .Columns}}
- Columns:{{range .Columns}} ` + "`{{.}}`" + `{{end}}
{{- end}}
{{if .ExampleJSON}}
` + "```json" + `
{{.ExampleJSON}}
` + "```" + `
{{end}}
This subset can be loaded as:

` + "```go" + `
ds, err := distiset.LoadFromDisk(ctx, "{{$.RepoID}}")
leaf, err := ds.Get("{{.Name}}")
` + "```" + `
{{end}}
{{- if .Artifacts}}
## Artifacts
{{range .Artifacts}}
* **Step**: ` + "`{{.Step}}`" + `
{{- range .Artifacts}}
  * **Artifact name**: ` + "`{{.Name}}`" + `
{{- range .Fields}}
    * ` + "`{{.Key}}`" + `: {{.Value}}
{{- end}}
{{- end}}
{{end}}
{{- end}}`))

func renderBody(in Input) (string, error) {
	view := bodyView{
		Title:        title(in.RepoID),
		RepoID:       in.RepoID,
		HasPipeline:  in.HasPipeline,
		PipelineName: in.PipelineName,
	}

	for _, s := range in.Steps {
		v := stepView{StepSummary: s}
		if s.Example != nil {
			ex, err := exampleJSON(s.Example)
			if err != nil {
				return "", fmt.Errorf("render example of step %q: %w", s.Name, err)
			}
			v.ExampleJSON = ex
		}
		view.Steps = append(view.Steps, v)
	}

	steps := make([]string, 0, len(in.Artifacts))
	for step := range in.Artifacts {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	for _, step := range steps {
		sa := stepArtifacts{Step: step}
		for _, meta := range in.Artifacts[step] {
			sa.Artifacts = append(sa.Artifacts, artifactOf(meta))
		}
		view.Artifacts = append(view.Artifacts, sa)
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render card body: %w", err)
	}
	return buf.String(), nil
}

func title(repoID string) string {
	trimmed := strings.TrimRight(repoID, "/")
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	if trimmed == "" {
		return "dataset"
	}
	return path.Base(strings.ReplaceAll(trimmed, `\`, "/"))
}

func artifactOf(meta map[string]any) artifactView {
	v := artifactView{}
	if name, ok := meta["name"].(string); ok {
		v.Name = name
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if k != "name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Fields = append(v.Fields, field{Key: k, Value: scalar(meta[k])})
	}
	return v
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// exampleJSON renders a record as indented JSON. Images and raw bytes are
// replaced by short placeholders.
func exampleJSON(rec map[string]any) (string, error) {
	clean := make(map[string]any, len(rec))
	for k, v := range rec {
		clean[k] = placeholder(v)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(clean); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func placeholder(v any) any {
	switch x := v.(type) {
	case image.Image:
		b := x.Bounds()
		return fmt.Sprintf("<image %dx%d>", b.Dx(), b.Dy())
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = placeholder(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = placeholder(e)
		}
		return out
	}
	return v
}
