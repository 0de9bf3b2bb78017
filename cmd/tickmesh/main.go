// Command tickmesh advances a tick-driven multi-agent orchestration by one
// stage per invocation.
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:]))
}
