package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bobmcallan/etfmomentum/internal/common"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var cfgErr *common.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
