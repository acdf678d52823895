// Package config handles application configuration and setup
package config

import (
	"math/rand/v2"

	"github.com/retroenv/retrochip8/internal/machine"
	"github.com/retroenv/retrochip8/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// CreateMachineOptions converts the program options into machine options.
// A non zero seed makes the random number sequence reproducible.
func CreateMachineOptions(opts options.MachineFlags) []machine.Option {
	var machineOptions []machine.Option

	if opts.Seed != 0 {
		random := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
		machineOptions = append(machineOptions, machine.WithRandom(random))
	}

	if opts.LegacyIndexFlag {
		machineOptions = append(machineOptions, machine.WithIndexFlag(machine.IndexFlagLegacy))
	}

	return machineOptions
}
