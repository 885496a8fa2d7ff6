// Package graph is a small pull-based stereo audio graph.
//
// A Context owns the clock and the destination. Nodes are created against a
// context, wired with Connect and rendered in fixed-size quanta when the
// context's Render is called. Params carry sample-accurate automation events
// (set, linear and exponential ramps, exponential approach) in context time.
//
// Every exported method is safe for concurrent use; the context serializes
// control calls against rendering.
package graph
