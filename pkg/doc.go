// Package pkg provides the core libraries of detour, an incremental
// connector router for diagrams.
//
// # Overview
//
// A diagram is a set of rectangular shapes, pins on those shapes and
// connectors between pins, shapes or free points. The router keeps a route
// for every connector that avoids the shapes it does not start or end in,
// and updates only what a change affects. The pkg directory is organized
// into three areas:
//
//  1. Routing - [geom], [visgraph], [route], [nudge] and [router]
//  2. Scenes - [scene] describes diagrams and their edits as files
//  3. Infrastructure - [cache], [session], [observability], [errors],
//     [httputil] and [buildinfo]
//
// # Architecture
//
// A commit flows through the routing packages:
//
//	queued mutations (add/move/delete shapes, pins, connectors)
//	         ↓
//	    [router] validates the transaction and updates its tables
//	         ↓
//	    [visgraph] updates the orthogonal and polyline routing graphs
//	         ↓
//	    [visgraph] searches a path for every invalidated connector
//	         ↓
//	    [route] simplifies the paths, [nudge] separates shared segments
//	         ↓
//	    routes and a per-item report
//
// # Quick Start
//
//	r, err := router.New(router.Defaults())
//	if err != nil {
//	    return err
//	}
//	r.AddShape(router.Shape{ID: "a", Rect: geom.R(0, 0, 100, 60)})
//	r.AddShape(router.Shape{ID: "b", Rect: geom.R(300, 200, 400, 260)})
//	r.AddConnector(router.Connector{
//	    ID:  "a-b",
//	    Src: router.AtShape("a", 0),
//	    Dst: router.AtShape("b", 0),
//	})
//	report := r.ProcessTransaction()
//	pts, _ := r.Route("a-b")
//
// Scene files replay a sequence of such transactions:
//
//	s, err := scene.Load("examples/scenes/bus.toml")
//	r, err := scene.NewRouter(s, router.Defaults())
//	err = scene.Run(s, r, nil)
//	snap := scene.Take(r)
package pkg
