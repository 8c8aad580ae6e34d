/*
Package types provides the module-wide structured error type.

# Overview

types is the lowest shared package: it imports nothing from the rest of the
module, so dataset, storage, tablestore, artifacts and the root distiset
package can all return the same error shape without import cycles.

# Error taxonomy

  - KEY_NOT_FOUND: unknown step access on a Distiset
  - UNSUPPORTED_SHAPE: split of already-split data, or a typed accessor on
    the other leaf variant
  - DECODE_ERROR: image column transform on malformed data
  - CORRUPT_LAYOUT: load met a step directory the table store cannot read
  - ARTIFACT_COPY_ERROR: I/O failure while relocating artifacts
  - TARGET_EXISTS: save collision without overwrite
  - INVALID_ARGUMENT: bad caller input (split fraction, column lengths)
  - UNSUPPORTED_SCHEME: no storage backend registered for a URI scheme

Errors carry the offending step, split, artifact or path and wrap their
cause, so errors.Is / errors.As and GetErrorCode work across the chain.
*/
package types
