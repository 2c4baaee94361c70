// Package scene is the in-process model of the host application's scene:
// named entities, materials and images.
//
// A Scene is owned by the host loop. It carries no locks; every mutation is
// expected to happen from a task running on that loop, which is what the
// bridge server guarantees for command handlers.
//
// # Naming
//
// Object names are unique. Add renames a colliding object with the first
// free ".NNN" suffix and returns the final name, the way the host does.
//
// # Primary View
//
// Some host operators only work from the primary 3D view. WithPrimaryView
// establishes that context for the duration of a call and
// RequirePrimaryView checks for it.
package scene
