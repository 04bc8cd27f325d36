// Command heapctl administers the files backing a global heap.
package main

func main() {
	execute()
}
