// Package bridge provides the per-module access handle.
//
// Every module instance receives its own Context, built from the
// application coordinator, the module name and the id of the element
// backing the instance. The Context exposes only the Bridge methods:
// broadcasting, service lookup, module and global configuration, element
// lookup and navigation. Each call delegates straight to the coordinator;
// the bridge keeps no state beyond the three constructor values.
//
// Configuration lookups take a Key (Named or Whole) and return a Result
// that is either a single value, the whole configuration object, or
// Absent. A module whose element cannot be found has no configuration.
package bridge
