/*
Package provenance bundles the pipeline configuration and execution log a
distiset was produced by.

On save the selected sources are copied verbatim into

	<root>/.distiset/pipeline.yaml
	<root>/.distiset/pipeline.log

Copy is best effort: a source that is unset, deselected or missing is
skipped without error, and the folder is created only when at least one
file is written. On load Discover reports which of the two files are
present. The pipeline file is otherwise opaque; PipelineTags and
PipelineName read the two fields the dataset card uses.
*/
package provenance
