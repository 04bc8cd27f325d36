package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/globalheap/internal/topology"
	"github.com/joshuapare/globalheap/pkg/globalheap"
)

var (
	createHeapPath     string
	createSize         string
	createMetazoneSize string
	createPartitions   int
)

func init() {
	cmd := newCreateCmd()
	cmd.Flags().StringVar(&createHeapPath, "heappath", "", "Path of the heap file")
	cmd.Flags().StringVar(&createSize, "size", "", "Heap size, e.g. 64G")
	cmd.Flags().StringVar(&createMetazoneSize, "metazone_size", "8G", "Metazone size, a power of two")
	cmd.Flags().IntVar(&createPartitions, "partitions", 1, "Number of files to split the heap across")
	rootCmd.AddCommand(cmd)
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create and format a new heap",
		Long: `Create sizes the heap files, formats every metazone and stamps each
zone with an interleave group from the machine's NUMA layout.

Example:
  heapctl create --heappath /mnt/pmem/heap --size 64G
  heapctl create --heappath /mnt/pmem/heap --size 64G --partitions 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate()
		},
	}
}

func runCreate() error {
	if createHeapPath == "" {
		return errors.New("--heappath is required")
	}
	size, err := ParseSize(createSize)
	if err != nil {
		return fmt.Errorf("--size: %w", err)
	}
	metazoneSize, err := ParseSize(createMetazoneSize)
	if err != nil {
		return fmt.Errorf("--metazone_size: %w", err)
	}

	printInfo("Create heap: heap_path=%s, heap_size=%d, metazone_size=%d\n",
		createHeapPath, size, metazoneSize)

	gh, err := globalheap.Create(createHeapPath, globalheap.CreateOptions{
		Size:         size,
		MetazoneSize: metazoneSize,
		Partitions:   createPartitions,
	}, &globalheap.Options{Topology: detectTopology()})
	if err != nil {
		return fmt.Errorf("failed to create heap: %w", err)
	}
	printVerbose("Zones: %d, files: %v\n", gh.NumZones(), gh.Paths())
	return gh.Close()
}

// detectTopology reads the NUMA layout, falling back to a single group.
func detectTopology() globalheap.Topology {
	numa, err := topology.Detect(topology.DefaultSysfsRoot)
	if err != nil {
		printVerbose("NUMA layout unavailable (%v), using one interleave group\n", err)
		return topology.Default()
	}
	return numa
}
