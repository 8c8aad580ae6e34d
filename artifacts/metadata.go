package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// Folder and file names of the artifact layout.
const (
	FolderName   = "artifacts"
	MetadataFile = "metadata.json"
)

// WriteMetadata writes data as indented JSON to <dir>/metadata.json.
func WriteMetadata(ctx context.Context, dir storage.Path, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return types.NewError(types.ErrInvalidArgument, "artifact metadata is not JSON encodable").
			WithPath(dir.String()).WithCause(err)
	}
	if err := dir.Join(MetadataFile).WriteFile(ctx, raw); err != nil {
		return fmt.Errorf("write artifact metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads <dir>/metadata.json. A missing or blank file yields an
// empty map. Comments and trailing commas are tolerated.
func ReadMetadata(ctx context.Context, dir storage.Path) (map[string]any, error) {
	p := dir.Join(MetadataFile)
	raw, err := p.ReadFile(ctx)
	if errors.Is(err, storage.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	stripped := bytes.TrimSpace(jsonc.ToJSON(raw))
	if len(stripped) == 0 {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal(stripped, &data); err != nil {
		return nil, types.NewError(types.ErrDecode, "artifact metadata is not a JSON object").
			WithPath(p.String()).WithCause(err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
