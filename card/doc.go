// Package card generates and parses dataset cards: a YAML header with the
// size category and tags, followed by a markdown body describing the steps,
// how to reproduce the pipeline and the bundled artifacts.
package card
