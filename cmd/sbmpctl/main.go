// Command sbmpctl is the operator CLI for driving and observing an SBMP
// endpoint over a serial device.
package main

import "github.com/ignacioSepam/sbmp/cmd/sbmpctl/cmd"

func main() {
	cmd.Execute()
}
