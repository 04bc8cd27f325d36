package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/globalheap/pkg/globalheap"
)

var removeHeapPath string

func init() {
	cmd := newRemoveCmd()
	cmd.Flags().StringVar(&removeHeapPath, "heappath", "", "Path of the heap file")
	rootCmd.AddCommand(cmd)
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete every file of a heap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove()
		},
	}
}

func runRemove() error {
	if removeHeapPath == "" {
		return errors.New("--heappath is required")
	}
	printInfo("Removing file: %s\n", removeHeapPath)
	if err := globalheap.Remove(removeHeapPath); err != nil {
		return fmt.Errorf("failed to remove heap: %w", err)
	}
	return nil
}
