// Command labboctl is the terminal client for a labbo server.
package main

import "github.com/dukerupert/labbo/internal/cli"

func main() {
	cli.Execute()
}
