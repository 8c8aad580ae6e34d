// Package tablestore persists dataset leaves to directories.
//
// A Table directory holds meta.json (column names, column features, codec,
// compression and row count) and one data file with the column values:
//
//	<dir>/meta.json
//	<dir>/data.cbor[.zst|.lz4]   or   data.json[.zst|.lz4]
//
// A SplitGroup directory holds a split registry and one Table directory per
// split:
//
//	<dir>/dataset_dict.json      {"splits": ["train", "test"]}
//	<dir>/train/meta.json ...
//
// CBOR is the default codec and keeps integers and floats apart. JSON is
// human readable but turns whole-number floats into integers on load.
// Columns whose cells are all images are stored as PNG bytes and decoded
// back into images on load.
package tablestore
