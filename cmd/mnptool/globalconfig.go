// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/simplicity-project/spld/chaincfg"
)

var (
	spldHomeDir     = btcutil.AppDataDir("spld", false)
	activeNetParams = &chaincfg.MainNetParams

	// Default global config.
	cfg = &config{
		DataDir: filepath.Join(spldHomeDir, "data"),
	}
)

// config defines the global configuration options.
type config struct {
	DataDir string `short:"b" long:"datadir" description:"Location of the spld data directory"`
	LogFile string `long:"logfile" description:"Write a rotating debug log to this file"`
	TestNet bool   `long:"testnet" description:"Use the test network"`
	SimNet  bool   `long:"simnet" description:"Use the simulation test network"`
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// setupGlobalConfig examines the global configuration options for any
// conditions which are invalid as well as performs any additional setup
// necessary after the initial parse.
func setupGlobalConfig() error {
	// Multiple networks can't be selected simultaneously.  Count the
	// number of network flags passed and assign the active network params
	// while we're at it.
	numNets := 0
	if cfg.TestNet {
		numNets++
		activeNetParams = &chaincfg.TestNetParams
	}
	if cfg.SimNet {
		numNets++
		activeNetParams = &chaincfg.SimNetParams
	}
	if numNets > 1 {
		return errors.New("the testnet and simnet params can't be " +
			"used together -- choose one of the two")
	}

	// Append the network type to the data directory so it is "namespaced"
	// per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, activeNetParams.Name)

	if cfg.LogFile != "" {
		if err := initLogRotator(cfg.LogFile); err != nil {
			return err
		}
	}

	return nil
}
