// Package services provides the named service registry for boxd.
//
// Services are either provided as ready instances (Provide) or registered
// as factories (Register) that are built by Resolve. A factory may Require
// other services; dependency cycles are reported as ErrCircularDependency.
// After resolution, Get is a plain lookup that returns nil for unknown
// names.
package services
