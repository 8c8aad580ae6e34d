package tablestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/BaSui01/distiset/internal/pool"
)

// Codec names the encoding of the data file.
type Codec string

const (
	CodecCBOR Codec = "cbor"
	CodecJSON Codec = "json"
)

// ParseCodec validates a codec name. "" means CBOR.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", CodecCBOR:
		return CodecCBOR, nil
	case CodecJSON:
		return CodecJSON, nil
	default:
		return "", fmt.Errorf("unknown codec %q", name)
	}
}

// Compression names the compression applied to the data file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression validates a compression name. "" means none.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// dataFileName returns the data file name for a codec and compression.
func dataFileName(codec Codec, comp Compression) string {
	name := "data." + string(codec)
	switch comp {
	case CompressionZstd:
		name += ".zst"
	case CompressionLZ4:
		name += ".lz4"
	}
	return name
}

// =============================================================================
// codecs
// =============================================================================

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// Core deterministic encoding: same table, same bytes.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("tablestore: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("tablestore: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("tablestore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("tablestore: zstd decoder initialization failed: " + err.Error())
	}
}

func (c Codec) marshal(columns [][]any) ([]byte, error) {
	switch c {
	case CodecCBOR:
		return cborEnc.Marshal(columns)
	case CodecJSON:
		return json.Marshal(columns)
	default:
		return nil, fmt.Errorf("unknown codec %q", c)
	}
}

func (c Codec) unmarshal(data []byte) ([][]any, error) {
	var columns [][]any
	switch c {
	case CodecCBOR:
		if err := cborDec.Unmarshal(data, &columns); err != nil {
			return nil, err
		}
	case CodecJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&columns); err != nil {
			return nil, err
		}
		for _, col := range columns {
			for i, v := range col {
				col[i] = fromJSONNumbers(v)
			}
		}
	default:
		return nil, fmt.Errorf("unknown codec %q", c)
	}
	return columns, nil
}

// fromJSONNumbers turns json.Number into int64 when the literal is an
// integer, float64 otherwise.
func fromJSONNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i, e := range x {
			x[i] = fromJSONNumbers(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = fromJSONNumbers(e)
		}
		return x
	default:
		return v
	}
}

// =============================================================================
// compression
// =============================================================================

func (c Compression) compress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case CompressionLZ4:
		buf := pool.GetBuffer()
		defer pool.PutBuffer(buf)
		w := lz4.NewWriter(buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return bytes.Clone(buf.Bytes()), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

func (c Compression) decompress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
