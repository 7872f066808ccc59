// Package snapshot defines the record emitted once per acquisition cycle:
// a timestamp, the captured desktop image and the text regions found in it.
package snapshot
