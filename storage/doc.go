// Package storage is the path abstraction every distiset reads and writes
// through.
//
// A Path pairs a FileSystem backend with a backend-specific name. Backends
// are picked by URI scheme through a registry: bare paths and file:// go to
// the local disk, redis://<bucket>/<path> goes to a Redis-backed object
// store. Storage options are passed verbatim to the backend factory.
//
// CopyTree copies a directory tree between any two paths. Copies between two
// different remote backends are staged through a temporary local directory
// that is removed on every exit path.
package storage
