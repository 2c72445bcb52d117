// Package bridgecfg defines the data a bridge is configured with and the
// snapshot it reports back: ChildConfig in, tool set and status out. The
// core consumes a []ChildConfig handed to it in memory; this package's
// JSON/YAML (de)serialization is a convenience for the standalone
// cmd/mcproxyd binary, not a requirement the core imposes on embedders.
package bridgecfg
