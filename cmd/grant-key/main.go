// Package main provides a one-shot utility for respec grant keys.
//
// It emits the Ed25519 keypair the passives service verifies tree reset
// grants with, and can mint a grant for manual testing.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/hollowspire.game/internal/platform/config"
	"github.com/louisbranch/hollowspire.game/internal/tools/grantkey"
)

func main() {
	cfg, err := grantkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := grantkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate grant key: %v", err)
	}
}
