// Package workspace confines agent file access to a directory tree.
//
// Guard resolves model-supplied paths and rejects those that escape the
// root. Watcher reports out-of-band changes to the tree on the event bus.
// LoadInstructions reads the optional instruction files that seed a
// session's system prompt.
package workspace
