package tablestore

// File names of the layout.
const (
	MetaFile          = "meta.json"
	SplitRegistryFile = "dataset_dict.json"
)

// FormatVersion is written to every meta.json. Load rejects newer versions.
const FormatVersion = 1

// FeatureImage marks a column whose cells are images.
const FeatureImage = "image"

// ColumnMeta describes one column.
type ColumnMeta struct {
	Name    string `json:"name"`
	Feature string `json:"feature,omitempty"`
}

// TableMeta is the content of meta.json.
type TableMeta struct {
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	Codec       Codec        `json:"codec"`
	Compression Compression  `json:"compression"`
	RowCount    int          `json:"row_count"`
	Columns     []ColumnMeta `json:"columns"`
}

// SplitRegistry is the content of dataset_dict.json.
type SplitRegistry struct {
	Splits []string `json:"splits"`
}
