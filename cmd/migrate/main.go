// Command migrate brings every registered domain schema to its latest version.
package main

import "github.com/aqasim81/domain-migration-engine/internal/cli"

func main() {
	cli.Execute()
}
