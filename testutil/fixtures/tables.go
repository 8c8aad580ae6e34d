// =============================================================================
// 📦 测试数据工厂 - 数据表与产物
// =============================================================================
// 提供预定义的 Table、SplitGroup、流水线配置与产物数据，用于测试
// =============================================================================
package fixtures

import (
	"fmt"
	"image"
	"image/color"

	"github.com/BaSui01/distiset/dataset"
)

// =============================================================================
// 🎯 Table 工厂
// =============================================================================

// InstructionTable 返回 n 行 instruction / generation 两列的数据表
func InstructionTable(n int) *dataset.Table {
	instructions := make([]any, n)
	generations := make([]any, n)
	for i := 0; i < n; i++ {
		instructions[i] = fmt.Sprintf("instruction %d", i)
		generations[i] = fmt.Sprintf("generation %d", i)
	}
	return dataset.MustNewTable(
		dataset.Column{Name: "instruction", Values: instructions},
		dataset.Column{Name: "generation", Values: generations},
	)
}

// MixedTable 返回覆盖所有标量类型与嵌套值的数据表
func MixedTable() *dataset.Table {
	return dataset.MustNewTable(
		dataset.Column{Name: "text", Values: []any{"a", "b", nil}},
		dataset.Column{Name: "count", Values: []any{int64(1), int64(-2), int64(3)}},
		dataset.Column{Name: "score", Values: []any{0.5, 1.25, -3.5}},
		dataset.Column{Name: "ok", Values: []any{true, false, true}},
		dataset.Column{Name: "tags", Values: []any{[]any{"x", "y"}, []any{}, []any{"z"}}},
		dataset.Column{Name: "meta", Values: []any{
			map[string]any{"model": "m1"},
			map[string]any{"model": "m2", "n": int64(2)},
			map[string]any{},
		}},
	)
}

// SplitInstructionGroup 返回 train / test 两个 split 的 SplitGroup
func SplitInstructionGroup(train, test int) *dataset.SplitGroup {
	return dataset.NewSplitGroup().
		Set("train", InstructionTable(train)).
		Set("test", InstructionTable(test))
}

// =============================================================================
// 🖼️ 图像工厂
// =============================================================================

// SolidImage 返回 w x h 的纯色 RGBA 图像
func SolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// EncodedImageTable 返回 image 列为 base64 PNG 字符串的数据表
func EncodedImageTable(n int) *dataset.Table {
	values := make([]any, n)
	for i := 0; i < n; i++ {
		s, err := dataset.EncodeImage(SolidImage(2, 2, color.RGBA{R: uint8(i * 40), A: 255}), dataset.ImageFormatPNG)
		if err != nil {
			panic(err)
		}
		values[i] = s
	}
	ids := make([]any, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	return dataset.MustNewTable(
		dataset.Column{Name: "id", Values: ids},
		dataset.Column{Name: "image", Values: values},
	)
}

// =============================================================================
// ⚙️ 流水线配置与产物
// =============================================================================

// PipelineYAML 是带 name 与 tags 的最小流水线配置
const PipelineYAML = `pipeline:
  name: pipe-name
  description: test pipeline
  tags:
    - cooking
    - synthetic
  steps:
    - step:
        name: load_data
    - step:
        name: text_generation
`

// PipelineLog 是示例流水线日志
const PipelineLog = "[INFO] pipeline started\n[INFO] pipeline finished\n"

// ArtifactPayload 返回一个产物的 payload 与 metadata
func ArtifactPayload() (map[string]any, map[string][]byte) {
	return map[string]any{"type": "faiss", "dimensions": int64(384)},
		map[string][]byte{
			"index.bin":         []byte{0, 1, 2, 3, 4, 5},
			"shards/part-0.bin": []byte("part zero"),
		}
}
