// Package filesystem provides implementations of the types.FS
// interface: an OS-backed one for production use and an afero-backed
// one used by tests that want an in-memory filesystem.
package filesystem
