/*
Package dataset holds the in-memory shapes a pipeline step can produce.

# Leaf variants

A step output is a Leaf, which is one of exactly two variants:

  - *Table: ordered named columns of equal length
  - *SplitGroup: ordered split name -> *Table (for example train/test)

Leaf is sealed; code outside this package switches on Kind (or a type
switch) instead of probing structure. MapTables and ForEachTable visit
every table of a leaf whatever its variant, which is how the split, image
and card code stays polymorphic.

# Values

Cells hold nil, bool, int64, uint64 (above MaxInt64 only), float64, string,
[]byte, []any, map[string]any or image.Image. NewTable normalises the other
Go integer and float kinds on the way in so that a table compares equal to
the same table after it went through a codec.

# Transforms

TrainTestSplit partitions rows deterministically for a seed.
TransformColumnToImage decodes base64 image strings into image.Image.
*/
package dataset
