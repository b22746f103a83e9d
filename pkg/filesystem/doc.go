// Package filesystem provides filesystem implementations for depotkit.
//
// This package contains implementations of the types.FS interface,
// including the standard OS filesystem and an afero-backed memory
// filesystem for tests.
package filesystem
