package distiset

import (
	"context"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/card"
	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/provenance"
)

// GetCard builds the dataset card. Pipeline name and tags come from
// ConfigPath, the artifacts section from ArtifactsPath.
func (d *Distiset) GetCard(ctx context.Context, repoID string) (*card.Card, error) {
	in := card.Input{RepoID: repoID}

	for _, step := range d.steps {
		in.Steps = append(in.Steps, summarize(step, d.leaves[step]))
	}

	if d.ConfigPath != nil {
		ok, err := d.ConfigPath.IsFile(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			in.HasPipeline = true
			in.PipelineName = provenance.PipelineName(ctx, *d.ConfigPath)
			in.ExtraTags = provenance.PipelineTags(ctx, *d.ConfigPath)
		}
	}

	if d.ArtifactsPath != nil {
		summary, err := artifacts.NewManager(artifacts.DefaultManagerConfig(), nil).Summary(ctx, *d.ArtifactsPath)
		if err != nil {
			return nil, err
		}
		in.Artifacts = summary
	}

	return card.Generate(in)
}

// summarize describes one step for the card. A split step counts the rows of
// all its splits.
func summarize(step string, leaf dataset.Leaf) card.StepSummary {
	s := card.StepSummary{
		Name:    step,
		Rows:    leaf.NumRows(),
		Columns: dataset.ColumnNames(leaf),
	}
	if g, ok := leaf.(*dataset.SplitGroup); ok {
		for _, name := range g.Names() {
			t, _ := g.Split(name)
			s.Splits = append(s.Splits, card.SplitSummary{Name: name, Rows: t.NumRows()})
		}
	}
	if t := dataset.SampleTable(leaf); t != nil && t.NumRows() > 0 {
		s.Example = t.Row(0)
	}
	return s
}
