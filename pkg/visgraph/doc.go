// Package visgraph builds and searches the routing graphs.
//
// A [Space] holds the obstacles: every shape is expanded by the buffer
// distance and indexed in an R-tree. Shapes, pins and free connector
// endpoints register generators in the space, and every mutation is
// recorded as a changed region or a changed generator. [Space.Flush] hands
// those changes to the graphs.
//
// Two graphs are maintained over the same space:
//
//   - [Orthogonal] casts a horizontal and a vertical ray through every
//     generator. Rays stop at buffered shapes the generator cannot see
//     through. Rays sharing a coordinate merge into lines and the graph's
//     nodes are the crossings of horizontal and vertical lines.
//   - [Polyline] joins every pair of generators whose straight segment only
//     crosses shapes one of its ends can see through.
//
// Both graphs update incrementally: only rays, lines and visibility edges
// touching a changed region are regenerated. Each edge records the shapes
// whose buffered interior it crosses, so one graph serves every connector
// and a [Query] decides per connector which edges are usable.
//
// # Determinism
//
// Search results never depend on map iteration order or on the history of
// updates. Equal-cost alternatives are resolved by node position and then
// by arrival direction, preferring horizontal arrivals, so an incrementally
// maintained graph and a freshly built one yield the same paths.
package visgraph
