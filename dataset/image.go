package dataset

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/BaSui01/distiset/types"
)

// Image formats understood by EncodeImage. DecodeImage also reads GIF.
const (
	ImageFormatPNG  = "png"
	ImageFormatJPEG = "jpeg"
	ImageFormatGIF  = "gif"
)

// DecodeImage decodes a self-describing encoded image string: standard
// base64 of the image bytes, optionally prefixed with a
// "data:image/<format>;base64," URI header.
func DecodeImage(s string) (image.Image, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, fmt.Errorf("data URI is not base64 encoded")
		}
		payload = payload[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	return DecodeImageBytes(raw)
}

// DecodeImageBytes decodes raw PNG, JPEG or GIF bytes.
func DecodeImageBytes(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodeImageBytes encodes img in the given format ("png" when empty).
func EncodeImageBytes(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "", ImageFormatPNG:
		err = png.Encode(&buf, img)
	case ImageFormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case ImageFormatGIF:
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, types.Errorf(types.ErrInvalidArgument, "unsupported image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

// EncodeImage is the inverse of DecodeImage: it returns the base64 encoding
// of img in the given format.
func EncodeImage(img image.Image, format string) (string, error) {
	raw, err := EncodeImageBytes(img, format)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// TransformColumnToImage decodes every cell of column into an image.Image,
// in every table of leaf. Tables without the column are left untouched, so a
// leaf that lacks it everywhere is returned as is.
func TransformColumnToImage(leaf Leaf, column string) (Leaf, error) {
	return MapTables(leaf, func(split string, t *Table) (*Table, error) {
		if !t.HasColumn(column) {
			return t, nil
		}
		out, err := columnToImage(t, column)
		if err != nil {
			if e, ok := types.AsError(err); ok && split != "" {
				e.WithSplit(split)
			}
			return nil, err
		}
		return out, nil
	})
}

func columnToImage(t *Table, column string) (*Table, error) {
	values, _ := t.Column(column)
	for i, v := range values {
		var (
			img image.Image
			err error
		)
		switch cell := v.(type) {
		case nil:
			continue
		case image.Image:
			continue
		case string:
			img, err = DecodeImage(cell)
		case []byte:
			img, err = DecodeImageBytes(cell)
		default:
			err = fmt.Errorf("cell holds %T, not an encoded image", v)
		}
		if err != nil {
			return nil, types.Errorf(types.ErrDecode, "column %q row %d is not a valid encoded image", column, i).
				WithCause(err)
		}
		values[i] = img
	}
	return t.WithColumn(column, values)
}
