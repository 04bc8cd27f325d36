// Package topology answers the two locality questions the heap asks when it
// places an allocation: which interleave group is nearest to the caller and
// how many groups exist.
package topology

//go:generate mockgen -destination=mocks/topology.go -package=mocks github.com/joshuapare/globalheap/internal/topology Topology

// Topology reports interleave groups. Groups are numbered 0..MaxInterleaveGroup.
type Topology interface {
	NearestInterleaveGroup() uint8
	MaxInterleaveGroup() uint8
}

// Static is a fixed topology. The zero value is a single group.
type Static struct {
	Nearest uint8
	Max     uint8
}

// NearestInterleaveGroup implements Topology.
func (s Static) NearestInterleaveGroup() uint8 { return s.Nearest }

// MaxInterleaveGroup implements Topology.
func (s Static) MaxInterleaveGroup() uint8 { return s.Max }

// Default returns the single-group topology used when none is configured.
func Default() Topology { return Static{} }
