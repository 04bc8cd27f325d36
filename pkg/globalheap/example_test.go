package globalheap_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joshuapare/globalheap/pkg/globalheap"
)

// Example creates a heap, stores a string and publishes it as the root.
func Example() {
	dir, err := os.MkdirTemp("", "globalheap")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	gh, err := globalheap.Create(filepath.Join(dir, "heap"), globalheap.CreateOptions{
		Size:         64 << 20,
		MetazoneSize: 8 << 20,
	}, nil)
	if err != nil {
		fmt.Printf("Create failed: %v\n", err)
		return
	}
	defer gh.Close()

	p, err := gh.Malloc(64)
	if err != nil {
		fmt.Printf("Malloc failed: %v\n", err)
		return
	}
	b, _ := gh.Bytes(p, 64)
	copy(b, "hello, heap")
	_ = gh.Persist(p, 64)
	_ = gh.SetRoot(p)
}

// ExampleOpen reopens a heap and reads back its root object.
func ExampleOpen() {
	gh, err := globalheap.Open("/mnt/pmem/heap", nil)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer gh.Close()

	if root := gh.Root(); !root.IsNil() {
		b, _ := gh.Bytes(root, 11)
		fmt.Println(string(b))
	}
}

// ExampleFormatInstance reclaims the zones of an instance that crashed.
func ExampleFormatInstance() {
	n, err := globalheap.FormatInstance("/mnt/pmem/heap", 7)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("reclaimed %d zones\n", n)
}
