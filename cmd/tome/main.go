// Command tome keeps a local copy of the D&D 5e SRD and searches it.
package main

import "github.com/mesh-intelligence/tome/internal/cli"

func main() {
	cli.Execute()
}
