// Package types defines the core data model shared across claupack:
// pattern matches, deployed files, deployment results, per-repository
// deployment state, the installation history log, and the persisted
// state document. It also defines the FS interface used by every
// component that touches the filesystem, so that logic can be tested
// against an in-memory filesystem.
package types
