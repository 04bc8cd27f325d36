package topology

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultSysfsRoot is where Linux publishes NUMA nodes.
const DefaultSysfsRoot = "/sys/devices/system/node"

// ErrNoNUMA indicates the sysfs node directory could not be read.
var ErrNoNUMA = errors.New("topology: no NUMA information")

// NUMA maps interleave groups to NUMA nodes as published in sysfs.
type NUMA struct {
	maxNode uint8
	// cpuNode holds the node of each CPU listed under nodeN/cpulist.
	cpuNode map[int]uint8
	// currentCPU returns a CPU the calling thread may run on.
	currentCPU func() (int, bool)
}

// Detect reads the NUMA layout under root (DefaultSysfsRoot when empty).
func Detect(root string) (*NUMA, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	raw, err := os.ReadFile(filepath.Join(root, "online"))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "topology: read %s", root), ErrNoNUMA)
	}
	nodes, err := parseList(strings.TrimSpace(string(raw)))
	if err != nil || len(nodes) == 0 {
		return nil, errors.Wrapf(ErrNoNUMA, "bad online list %q", raw)
	}

	n := &NUMA{cpuNode: make(map[int]uint8), currentCPU: currentCPU}
	for _, node := range nodes {
		if node > 255 {
			return nil, errors.Wrapf(ErrNoNUMA, "node %d exceeds interleave group range", node)
		}
		if uint8(node) > n.maxNode {
			n.maxNode = uint8(node)
		}
		cpus, err := os.ReadFile(filepath.Join(root, "node"+strconv.Itoa(node), "cpulist"))
		if err != nil {
			continue
		}
		list, err := parseList(strings.TrimSpace(string(cpus)))
		if err != nil {
			continue
		}
		for _, cpu := range list {
			n.cpuNode[cpu] = uint8(node)
		}
	}
	return n, nil
}

// NearestInterleaveGroup implements Topology. Goroutines migrate between
// threads, so the answer is a placement hint rather than a guarantee.
func (n *NUMA) NearestInterleaveGroup() uint8 {
	cpu, ok := n.currentCPU()
	if !ok {
		return 0
	}
	return n.cpuNode[cpu]
}

// MaxInterleaveGroup implements Topology.
func (n *NUMA) MaxInterleaveGroup() uint8 { return n.maxNode }

// parseList parses the sysfs list format, e.g. "0-3,8,10-11".
func parseList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, errors.Wrapf(err, "topology: bad list element %q", part)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil || last < first {
				return nil, errors.Newf("topology: bad list range %q", part)
			}
		}
		for i := first; i <= last; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}
