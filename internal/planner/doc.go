// Package planner handles the planning phase of a sweep.
//
// The planner joins the live set computed by the tracer with the physical
// inventory and decides, for every entry, whether it is kept, deleted, or
// skipped. Plans are deterministic: decisions come out in inventory order.
//
// Key responsibilities:
//   - Attribute deps/, build/ and uplifted entries to fingerprint records
//   - Keep anything that cannot be positively attributed to a dead record
//   - Enforce that the target directory lies inside the workspace
//   - Partition the inventory exactly into Keep, Delete and Skipped
package planner
