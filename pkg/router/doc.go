// Package router keeps connector routes up to date as a diagram changes.
//
// # Overview
//
// A [Router] holds shapes, connection pins and connectors. Mutations are
// queued and applied together by [Router.ProcessTransaction], which
// re-resolves the affected connector ends, searches new routes on the
// routing graphs of package visgraph and nudges overlapping orthogonal
// segments apart with package nudge:
//
//	r, err := router.New(router.Defaults())
//	if err != nil {
//	    return err
//	}
//	r.AddShape(router.Shape{ID: "a", Rect: geom.R(100, 100, 300, 300)})
//	r.AddShape(router.Shape{ID: "b", Rect: geom.R(400, 400, 600, 600)})
//	r.AddConnector(router.Connector{
//	    ID:  "c",
//	    Src: router.AtShape("a", router.CentreClass),
//	    Dst: router.AtShape("b", router.CentreClass),
//	})
//	report := r.ProcessTransaction()
//	pts, _ := r.Route("c")
//
// # Incremental Updates
//
// A commit only reroutes connectors that are new or modified, whose ends
// attach to a changed shape or pin, whose route touches changed geometry,
// or that could not be routed before. Only connectors sharing a channel
// with a rerouted connector or changed geometry are nudged again.
//
// # Errors
//
// Invalid arguments are rejected when a mutation is queued. Problems only
// visible against the current diagram, such as duplicate ids or a child
// outside its parent, are reported per mutation in [Report.Items]; the rest
// of the transaction still applies. Connectors that cannot be routed keep
// an empty route and report the reason through [Router.Err].
package router
