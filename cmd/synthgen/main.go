/*
synthgen - command-line dataset generator

PURPOSE:
  Generates one or more verticals to JSON files without the API server.

COMMANDS:
  generate   Generate verticals into an output directory
  verticals  List registered verticals
  validate   Check a custom vertical spec file

EXAMPLES:
  synthgen generate --vertical ecommerce --vertical saas --seed 7 --out ./out
  synthgen generate --vertical all --months 12 --start 2024-01
  synthgen generate --spec ./acme.yaml --parallel 2
  synthgen validate ./acme.yaml

SEE ALSO:
  - runner/runner.go: Concurrent generation
  - output/writer.go: All-or-nothing file output
*/
package main

import (
	"os"

	_ "github.com/warp/synth-engine/ecommerce"
	_ "github.com/warp/synth-engine/marketplace"
	_ "github.com/warp/synth-engine/nonprofit"
	_ "github.com/warp/synth-engine/rideshare"
	_ "github.com/warp/synth-engine/saas"
)

var version = "dev"

func main() {
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
