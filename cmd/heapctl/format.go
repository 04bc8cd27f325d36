package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/globalheap/pkg/globalheap"
)

var (
	formatHeapPath string
	formatZones    string
	formatInstance uint64
)

func init() {
	cmd := newFormatCmd()
	cmd.Flags().StringVar(&formatHeapPath, "heappath", "", "Path of the heap file")
	cmd.Flags().StringVar(&formatZones, "zones", "all", `Zones to format: "all" or a list such as 0-3,7`)
	cmd.Flags().Uint64Var(&formatInstance, "instance", 0, "Format only the zones leased by this instance")
	rootCmd.AddCommand(cmd)
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Empty a heap, some of its zones, or the zones of one instance",
		Long: `Format rewrites zones to empty and unleased. With the default --zones all
the heap header is reset too, restarting the generation and clearing the root.

--instance reclaims the zones of an instance that exited without closing
the heap. Formatting zones that a live instance still uses corrupts it.

Example:
  heapctl format --heappath /mnt/pmem/heap
  heapctl format --heappath /mnt/pmem/heap --zones 0-3,7
  heapctl format --heappath /mnt/pmem/heap --instance 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(cmd.Flags().Changed("instance"))
		},
	}
}

func runFormat(byInstance bool) error {
	if formatHeapPath == "" {
		return errors.New("--heappath is required")
	}

	if byInstance {
		n, err := globalheap.FormatInstance(formatHeapPath, globalheap.InstanceID(formatInstance))
		if err != nil {
			return fmt.Errorf("failed to format instance %d: %w", formatInstance, err)
		}
		printInfo("Formatted %d zones of instance %d\n", n, formatInstance)
		return nil
	}

	zones, err := ParseRange(formatZones)
	if err != nil {
		return fmt.Errorf("--zones: %w", err)
	}
	if zones == nil {
		if err := globalheap.Format(formatHeapPath); err != nil {
			return fmt.Errorf("failed to format heap: %w", err)
		}
		printInfo("Formatted heap: %s\n", formatHeapPath)
		return nil
	}
	if err := globalheap.FormatZones(formatHeapPath, zones); err != nil {
		return fmt.Errorf("failed to format zones: %w", err)
	}
	printInfo("Formatted zones: %v\n", zones)
	return nil
}
