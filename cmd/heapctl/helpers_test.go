package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Drain concurrently so large reports cannot fill the pipe.
	done := make(chan *bytes.Buffer)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- &buf
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return (<-done).String(), fnErr
}

// assertJSON checks that output is valid JSON and returns it decoded
func assertJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &result), "invalid JSON:\n%s", output)
	return result
}

// resetFlags restores every flag global to its default
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	createHeapPath, createSize, createMetazoneSize, createPartitions = "", "", "8G", 1
	removeHeapPath = ""
	formatHeapPath, formatZones, formatInstance = "", "all", 0
	reportHeapPath, reportZones, reportPerZone = "", "all", false
}

// createTestHeap creates a four-zone heap with 8M metazones
func createTestHeap(t *testing.T) string {
	t.Helper()
	resetFlags()
	path := filepath.Join(t.TempDir(), "heap")
	createHeapPath, createSize, createMetazoneSize = path, "32M", "8M"
	_, err := captureOutput(t, runCreate)
	require.NoError(t, err)
	resetFlags()
	return path
}
