/*
Package artifacts manages the auxiliary files steps produce next to their
tabular output.

# Layout

	artifacts/
	  <step>/
	    <artifact>/
	      metadata.json   free-form JSON object describing the artifact
	      <payload files>

# Core types

  - Artifact: one step/artifact folder with its metadata and file list.
  - Manager: creates, enumerates and relocates artifact trees. Relocation
    copies every file byte for byte and verifies each copy against the
    BLAKE3 digest taken while reading the source.

metadata.json is read leniently: comments and trailing commas are
accepted. Relocation is at-least-once and not atomic: a failure leaves the
files copied so far in place and reports ARTIFACT_COPY_ERROR naming the
step and artifact.
*/
package artifacts
