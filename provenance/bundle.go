package provenance

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/distiset/storage"
)

// Fixed names of the config bundle.
const (
	FolderName   = ".distiset"
	PipelineFile = "pipeline.yaml"
	LogFile      = "pipeline.log"
)

// Sources points at the pipeline config and log to bundle. Nil means unset.
type Sources struct {
	Pipeline *storage.Path
	Log      *storage.Path
}

// Selection picks which sources Copy considers.
type Selection struct {
	Pipeline bool
	Log      bool
}

// SelectAll selects both sources.
func SelectAll() Selection { return Selection{Pipeline: true, Log: true} }

// Bundle holds the locations of the bundled files. Nil means absent.
type Bundle struct {
	Pipeline *storage.Path
	Log      *storage.Path
}

// Empty reports whether neither file is present.
func (b Bundle) Empty() bool { return b.Pipeline == nil && b.Log == nil }

// Dir returns <root>/.distiset.
func Dir(root storage.Path) storage.Path { return root.Join(FolderName) }

// Copy copies the selected, set and existing sources into <root>/.distiset
// and returns where they were written. Missing sources are skipped.
func Copy(ctx context.Context, src Sources, root storage.Path, sel Selection) (Bundle, error) {
	var out Bundle
	dir := Dir(root)

	if sel.Pipeline {
		p, err := copyOne(ctx, src.Pipeline, dir.Join(PipelineFile))
		if err != nil {
			return out, err
		}
		out.Pipeline = p
	}
	if sel.Log {
		p, err := copyOne(ctx, src.Log, dir.Join(LogFile))
		if err != nil {
			return out, err
		}
		out.Log = p
	}
	return out, nil
}

func copyOne(ctx context.Context, src *storage.Path, dst storage.Path) (*storage.Path, error) {
	if src == nil || src.IsZero() {
		return nil, nil
	}
	ok, err := src.IsFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", src, err)
	}
	if !ok {
		return nil, nil
	}
	if _, err := storage.CopyFile(ctx, *src, dst); err != nil {
		return nil, err
	}
	return &dst, nil
}

// Discover returns the bundled files present below root.
func Discover(ctx context.Context, root storage.Path) (Bundle, error) {
	var out Bundle
	dir := Dir(root)

	for _, f := range []struct {
		name string
		set  **storage.Path
	}{
		{PipelineFile, &out.Pipeline},
		{LogFile, &out.Log},
	} {
		p := dir.Join(f.name)
		ok, err := p.IsFile(ctx)
		if err != nil {
			return Bundle{}, fmt.Errorf("stat %s: %w", p, err)
		}
		if ok {
			*f.set = &p
		}
	}
	return out, nil
}

// Pipeline is the part of pipeline.yaml the dataset card reads.
type Pipeline struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

type pipelineDocument struct {
	Pipeline Pipeline `yaml:"pipeline"`
}

// ReadPipeline parses the pipeline section of a pipeline.yaml.
func ReadPipeline(ctx context.Context, p storage.Path) (Pipeline, error) {
	raw, err := p.ReadFile(ctx)
	if err != nil {
		return Pipeline{}, err
	}
	var doc pipelineDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Pipeline{}, fmt.Errorf("parse %s: %w", p, err)
	}
	return doc.Pipeline, nil
}

// PipelineTags returns the non-empty, trimmed, deduplicated pipeline.tags.
// Any read or parse failure yields no tags.
func PipelineTags(ctx context.Context, p storage.Path) []string {
	pl, err := ReadPipeline(ctx, p)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(pl.Tags))
	var tags []string
	for _, t := range pl.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// PipelineName returns pipeline.name, or "" when unavailable.
func PipelineName(ctx context.Context, p storage.Path) string {
	pl, err := ReadPipeline(ctx, p)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(pl.Name)
}
