// Package variants composes the known cluster variants into a registry.
package variants

import (
	"ccm/internal/variant"
	"ccm/internal/variant/cassandra"
	"ccm/internal/variant/dse"
	"ccm/internal/variant/hcd"
)

// NewRegistry registers dse, hcd and the plain engine, in that order. The
// plain engine comes last because it matches any bin/cassandra.
func NewRegistry(deps variant.Deps) *variant.Registry {
	reg := variant.NewRegistry()

	d := dse.New(deps)
	reg.Register(d, d.Detector())

	h := hcd.New(deps)
	reg.Register(h, h.Detector())

	c := cassandra.New(deps)
	reg.Register(c, c.Detector())

	return reg
}
