/*
Package globalheap is a crash-consistent allocator over a heap image shared
by several processes through file-backed shared mappings.

# Quick Start

Create a heap, allocate and publish a root object:

	gh, err := globalheap.Create("/mnt/pmem/heap", globalheap.CreateOptions{
	    Size:         1 << 30,
	    MetazoneSize: 64 << 20,
	}, nil)
	if err != nil {
	    log.Fatal(err)
	}
	defer gh.Close()

	p, err := gh.Malloc(128)
	if err != nil {
	    log.Fatal(err)
	}
	b, _ := gh.Bytes(p, 128)
	copy(b, "hello")
	_ = gh.Persist(p, 128)
	_ = gh.SetRoot(p)

Reopen it later, possibly from another process:

	gh, err := globalheap.Open("/mnt/pmem/heap", nil)
	root := gh.Root()

# Pointers

Memory is addressed by Ptr, a byte offset from the start of the heap. Each
process maps the heap at its own address, so only offsets may be stored
inside the heap. Bytes translates an offset into the local mapping.

# Instances and Zones

Every Open starts a new instance with a fresh generation number. An
instance leases zones as it needs space and keeps them until Close. A free
of memory in a zone leased by another live instance fails with ErrNotOwned.
Zones leased by an instance that died are recovered with FormatInstance.

# Placement

Zones are stamped with an interleave group at creation. Malloc prefers the
group nearest the calling CPU and falls back to the others in turn;
MallocAttrib pins a group.
*/
package globalheap
