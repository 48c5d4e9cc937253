// Package deps reports whether the external binaries and credentials a
// pipeline run needs are available.
package deps
