package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/globalheap/pkg/globalheap"
)

var (
	reportHeapPath string
	reportZones    string
	reportPerZone  bool
)

func init() {
	cmd := newReportCmd()
	cmd.Flags().StringVar(&reportHeapPath, "heappath", "", "Path of the heap file")
	cmd.Flags().StringVar(&reportZones, "zones", "all", `Zones to report: "all" or a list such as 0-3,7`)
	cmd.Flags().BoolVar(&reportPerZone, "perzone", false, "Print statistics for every zone")
	rootCmd.AddCommand(cmd)
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print space usage of a heap",
		Long: `Report scans zone and slab headers and prints allocated and free space,
per zone and for the heap as a whole. It does not open an instance, so it can
run next to live processes; the numbers are then a snapshot.

Example:
  heapctl report --heappath /mnt/pmem/heap
  heapctl report --heappath /mnt/pmem/heap --zones 0-3 --perzone
  heapctl report --heappath /mnt/pmem/heap --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport()
		},
	}
}

func runReport() error {
	if reportHeapPath == "" {
		return errors.New("--heappath is required")
	}
	zones, err := ParseRange(reportZones)
	if err != nil {
		return fmt.Errorf("--zones: %w", err)
	}

	r, err := globalheap.ReportPath(reportHeapPath, zones)
	if err != nil {
		return fmt.Errorf("failed to read heap: %w", err)
	}
	if jsonOut {
		return r.WriteJSON(os.Stdout)
	}
	return r.WriteText(os.Stdout, reportPerZone)
}
