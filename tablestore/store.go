package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/types"
)

// Config selects how tables are written. Reading always follows meta.json.
type Config struct {
	Codec       string `yaml:"codec" json:"codec" env:"CODEC"`
	Compression string `yaml:"compression" json:"compression" env:"COMPRESSION"`
}

// DefaultConfig returns CBOR without compression.
func DefaultConfig() Config {
	return Config{Codec: string(CodecCBOR), Compression: string(CompressionNone)}
}

// Validate checks the codec and compression names.
func (c Config) Validate() error {
	if _, err := ParseCodec(c.Codec); err != nil {
		return err
	}
	if _, err := ParseCompression(c.Compression); err != nil {
		return err
	}
	return nil
}

// Store saves and loads leaves.
type Store struct {
	codec       Codec
	compression Compression
	logger      *zap.Logger
}

// New creates a Store.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec, err := ParseCodec(cfg.Codec)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidArgument, "invalid table store config").WithCause(err)
	}
	comp, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidArgument, "invalid table store config").WithCause(err)
	}
	return &Store{
		codec:       codec,
		compression: comp,
		logger:      logger.With(zap.String("component", "tablestore")),
	}, nil
}

// Default returns a Store with DefaultConfig and no logging.
func Default() *Store {
	s, _ := New(DefaultConfig(), nil)
	return s
}

// =============================================================================
// save
// =============================================================================

// Save writes leaf into dir. dir is created if needed. meta.json and
// dataset_dict.json are written last so a directory is only readable once
// complete.
func (s *Store) Save(ctx context.Context, dir storage.Path, leaf dataset.Leaf) error {
	switch l := leaf.(type) {
	case *dataset.Table:
		return s.saveTable(ctx, dir, l)

	case *dataset.SplitGroup:
		names := l.Names()
		for _, name := range names {
			if err := validateSplitName(name); err != nil {
				return err
			}
			t, _ := l.Split(name)
			if err := s.saveTable(ctx, dir.Join(name), t); err != nil {
				if e, ok := types.AsError(err); ok {
					e.WithSplit(name)
				}
				return err
			}
		}
		data, err := json.MarshalIndent(SplitRegistry{Splits: names}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal split registry: %w", err)
		}
		if err := dir.Join(SplitRegistryFile).WriteFile(ctx, data); err != nil {
			return fmt.Errorf("write split registry: %w", err)
		}
		return nil

	default:
		return types.Errorf(types.ErrUnsupportedShape, "cannot save leaf of type %T", leaf)
	}
}

func validateSplitName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return types.Errorf(types.ErrInvalidArgument, "invalid split name %q", name)
	}
	return nil
}

func (s *Store) saveTable(ctx context.Context, dir storage.Path, t *dataset.Table) error {
	if err := dir.MkdirAll(ctx); err != nil {
		return fmt.Errorf("create table dir %s: %w", dir, err)
	}

	cols := t.Columns()
	meta := TableMeta{
		Name:        dir.Base(),
		Version:     FormatVersion,
		Codec:       s.codec,
		Compression: s.compression,
		RowCount:    t.NumRows(),
		Columns:     make([]ColumnMeta, len(cols)),
	}
	payload := make([][]any, len(cols))

	for i, c := range cols {
		feature, err := columnFeature(c)
		if err != nil {
			return err
		}
		meta.Columns[i] = ColumnMeta{Name: c.Name, Feature: feature}
		if feature == FeatureImage {
			if payload[i], err = encodeImages(c); err != nil {
				return err
			}
			continue
		}
		payload[i] = c.Values
	}

	raw, err := s.codec.marshal(payload)
	if err != nil {
		return types.Errorf(types.ErrInvalidArgument, "table %q holds values the %s codec cannot encode", meta.Name, s.codec).
			WithCause(err)
	}
	data, err := s.compression.compress(raw)
	if err != nil {
		return err
	}
	if err := dir.Join(dataFileName(s.codec, s.compression)).WriteFile(ctx, data); err != nil {
		return fmt.Errorf("write table data: %w", err)
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal table meta: %w", err)
	}
	if err := dir.Join(MetaFile).WriteFile(ctx, metaBytes); err != nil {
		return fmt.Errorf("write table meta: %w", err)
	}

	s.logger.Debug("table saved",
		zap.String("path", dir.String()),
		zap.Int("rows", meta.RowCount),
		zap.Int("columns", len(cols)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func columnFeature(c dataset.Column) (string, error) {
	images, others := 0, 0
	for _, v := range c.Values {
		switch v.(type) {
		case nil:
		case image.Image:
			images++
		default:
			others++
		}
	}
	if images == 0 {
		return "", nil
	}
	if others > 0 {
		return "", types.Errorf(types.ErrInvalidArgument, "column %q mixes images with other values", c.Name)
	}
	return FeatureImage, nil
}

func encodeImages(c dataset.Column) ([]any, error) {
	out := make([]any, len(c.Values))
	for i, v := range c.Values {
		img, ok := v.(image.Image)
		if !ok {
			continue
		}
		raw, err := dataset.EncodeImageBytes(img, dataset.ImageFormatPNG)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidArgument, "column %q row %d: cannot encode image", c.Name, i).
				WithCause(err)
		}
		out[i] = raw
	}
	return out, nil
}

// =============================================================================
// load
// =============================================================================

// Probe reports which leaf variant dir holds without reading the data.
func Probe(ctx context.Context, dir storage.Path) (dataset.LeafKind, error) {
	ok, err := dir.Join(SplitRegistryFile).IsFile(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		return dataset.KindSplitGroup, nil
	}
	ok, err = dir.Join(MetaFile).IsFile(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		return dataset.KindTable, nil
	}
	return 0, types.Errorf(types.ErrCorruptLayout, "no %s or %s found", MetaFile, SplitRegistryFile).
		WithPath(dir.String())
}

// Probe reports which leaf variant dir holds.
func (s *Store) Probe(ctx context.Context, dir storage.Path) (dataset.LeafKind, error) {
	return Probe(ctx, dir)
}

// Load reads the leaf stored in dir. Any layout it cannot interpret yields
// CORRUPT_LAYOUT.
func (s *Store) Load(ctx context.Context, dir storage.Path) (dataset.Leaf, error) {
	kind, err := Probe(ctx, dir)
	if err != nil {
		return nil, err
	}

	if kind == dataset.KindTable {
		return s.loadTable(ctx, dir)
	}

	raw, err := dir.Join(SplitRegistryFile).ReadFile(ctx)
	if err != nil {
		return nil, err
	}
	var reg SplitRegistry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, corrupt(dir, "unreadable split registry", err)
	}

	group := dataset.NewSplitGroup()
	for _, name := range reg.Splits {
		if err := validateSplitName(name); err != nil {
			return nil, corrupt(dir, "split registry lists an invalid split name", err)
		}
		t, err := s.loadTable(ctx, dir.Join(name))
		if err != nil {
			if e, ok := types.AsError(err); ok {
				e.WithSplit(name)
			}
			return nil, err
		}
		group.Set(name, t)
	}
	return group, nil
}

func (s *Store) loadTable(ctx context.Context, dir storage.Path) (*dataset.Table, error) {
	raw, err := dir.Join(MetaFile).ReadFile(ctx)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, corrupt(dir, "missing "+MetaFile, err)
	}
	if err != nil {
		return nil, err
	}

	var meta TableMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, corrupt(dir, "unreadable "+MetaFile, err)
	}
	if meta.Version > FormatVersion {
		return nil, corrupt(dir, fmt.Sprintf("format version %d is newer than %d", meta.Version, FormatVersion), nil)
	}
	codec, err := ParseCodec(string(meta.Codec))
	if err != nil {
		return nil, corrupt(dir, "unknown codec", err)
	}
	comp, err := ParseCompression(string(meta.Compression))
	if err != nil {
		return nil, corrupt(dir, "unknown compression", err)
	}

	data, err := dir.Join(dataFileName(codec, comp)).ReadFile(ctx)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, corrupt(dir, "missing "+dataFileName(codec, comp), err)
	}
	if err != nil {
		return nil, err
	}
	if data, err = comp.decompress(data); err != nil {
		return nil, corrupt(dir, "cannot decompress table data", err)
	}
	payload, err := codec.unmarshal(data)
	if err != nil {
		return nil, corrupt(dir, "cannot decode table data", err)
	}

	if len(payload) != len(meta.Columns) {
		return nil, corrupt(dir, fmt.Sprintf("data has %d columns, meta lists %d", len(payload), len(meta.Columns)), nil)
	}
	cols := make([]dataset.Column, len(payload))
	for i, cm := range meta.Columns {
		if len(payload[i]) != meta.RowCount {
			return nil, corrupt(dir, fmt.Sprintf("column %q has %d rows, meta says %d", cm.Name, len(payload[i]), meta.RowCount), nil)
		}
		values := payload[i]
		if cm.Feature == FeatureImage {
			if values, err = decodeImages(cm.Name, values); err != nil {
				return nil, err
			}
		}
		cols[i] = dataset.Column{Name: cm.Name, Values: values}
	}

	t, err := dataset.NewTable(cols...)
	if err != nil {
		return nil, corrupt(dir, "invalid columns", err)
	}

	s.logger.Debug("table loaded",
		zap.String("path", dir.String()),
		zap.Int("rows", t.NumRows()),
		zap.String("codec", string(codec)),
	)
	return t, nil
}

func decodeImages(column string, values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		var (
			img image.Image
			err error
		)
		switch cell := v.(type) {
		case nil:
			continue
		case []byte:
			img, err = dataset.DecodeImageBytes(cell)
		case string:
			// JSON carries the bytes as base64
			img, err = dataset.DecodeImage(cell)
		default:
			err = fmt.Errorf("cell holds %T", v)
		}
		if err != nil {
			return nil, types.Errorf(types.ErrDecode, "column %q row %d is not a valid stored image", column, i).
				WithCause(err)
		}
		out[i] = img
	}
	return out, nil
}

func corrupt(dir storage.Path, msg string, cause error) error {
	e := types.NewError(types.ErrCorruptLayout, msg).WithPath(dir.String())
	if cause != nil {
		e.WithCause(cause)
	}
	return e
}
