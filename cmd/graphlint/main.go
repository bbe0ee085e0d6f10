// Package main checks passive tree documents before they ship.
//
// It loads each named document (or the embedded dataset when none are
// given), prints loader warnings, and exits non-zero when any document
// fails validation.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/hollowspire.game/internal/platform/config"
	"github.com/louisbranch/hollowspire.game/internal/tools/graphlint"
)

func main() {
	cfg, err := graphlint.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := graphlint.Run(cfg, os.Stdout); err != nil {
		config.Exitf("%v", err)
	}
}
