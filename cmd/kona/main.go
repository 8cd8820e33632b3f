// Command kona is the CLI front end spec §6 describes but places out of
// scope for the core pipeline: a thin cobra front door over pkg/api's
// Build/Context entry points (grounded on bennypowers-cem/cmd's
// root.go/generate.go/serve.go shape - a package-level rootCmd, one
// sub-command file per verb, pterm for all user-facing output).
package main

import "github.com/ruidosujeira/kona/cmd/kona/cmd"

func main() {
	cmd.Execute()
}
