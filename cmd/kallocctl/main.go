// Command kallocctl builds and exercises kernel resource pools from the
// command line: load a boot descriptor, run allocation workloads, and inspect
// pool trees.
package main

func main() {
	execute()
}
