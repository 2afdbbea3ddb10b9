// Package scene reads routing scenes and replays them against a router.
//
// # Overview
//
// A scene is a script of transactions: optional router parameters followed
// by a list of steps, each a list of operations that are queued on a
// [router.Router] and committed together. Scenes drive the detour CLI, the
// HTTP API and most end-to-end tests.
//
// # Formats
//
// Scenes are written in TOML, YAML or JSON. [Load] picks the decoder from the
// file extension (.toml, .yaml/.yml, .json); [Decode] takes the format
// explicitly. The three encodings share one schema:
//
//	[params]
//	routing = ["orthogonal", "polyline"]
//	shape_buffer = 4.0
//	segment_penalty = 50.0
//
//	[[steps]]
//	name = "initial"
//
//	[[steps.ops]]
//	op = "add_shape"
//	id = "a"
//	rect = [100.0, 100.0, 300.0, 300.0]
//
//	[[steps.ops]]
//	op = "add_connector"
//	id = "c1"
//	src = { shape = "a" }
//	dst = { point = [600.0, 200.0] }
//
// # Operations
//
// Every operation has an "op" field naming it:
//
//   - add_shape: id, rect [x1, y1, x2, y2], parent
//   - delete_shape: id
//   - move_shape: id, dx, dy
//   - resize_shape: id, rect
//   - add_pin: id, shape, class, pos [x, y], relative, dirs, exclusive, fixed
//   - delete_pin: id
//   - move_pin: id, pos, relative
//   - add_connector: id, src, dst, discipline
//   - delete_connector: id
//   - set_discipline: id, discipline
//   - set_ends: id, src, dst
//
// Connector ends are either {shape, class} or {point}. Pin directions are
// a list of "up", "down", "left", "right" or "all". Add operations without
// an id get a generated one when the scene is decoded, so every later use
// of a scene sees the same ids.
//
// # Output
//
// [Take] captures the routes of a router as a [Snapshot], which the CLI
// prints, writes as JSON and stores in its result cache as msgpack.
package scene
