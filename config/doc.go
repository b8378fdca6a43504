// Package config holds the knobs that shape generated modules: entity count
// bounds, resource ceilings, proposal toggles and optional module templates.
//
// A Config is plain data. Start from Default, Core2 or Everything, override
// fields, then call Sanitize so dependent features agree with each other.
// Load and Decode read TOML overlays on top of Default; Arbitrary draws a
// whole configuration from a decision stream for swarm testing.
package config
