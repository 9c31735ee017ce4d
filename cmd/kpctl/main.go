// Command kpctl runs catalogue maintenance against the configured store.
package main

import (
	"fmt"
	"os"

	"kplays-api/internal/config"
	"kplays-api/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.App)

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
