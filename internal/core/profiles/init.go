// Package profiles registers the downloadable stock report templates with
// the core registry. Import it for side effects.
package profiles
