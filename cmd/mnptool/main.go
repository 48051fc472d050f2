// Copyright (c) 2024-2025 The Simplicity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// mnptool is an operator utility for the masternode payments snapshot file
// (mnpayments.dat).  It can verify the file's integrity, print a summary of
// its contents, and rewrite it in the current format.
package main

import (
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

// realMain is the real main function for the utility.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func realMain() error {
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Setup the parser options and commands.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	parserFlags := flags.Options(flags.HelpFlag | flags.PassDoubleDash)
	parser := flags.NewNamedParser(appName, parserFlags)
	parser.AddGroup("Global Options", "", cfg)
	parser.AddCommand("verify",
		"Verify the integrity of the payments snapshot file",
		"Verify the magic message, network magic, checksum, and "+
			"format of mnpayments.dat without modifying it.",
		&verifyCfg)
	parser.AddCommand("show",
		"Print a summary of the payments snapshot file",
		"Print the vote and tally counts, the covered height range, "+
			"and the producer state stored in mnpayments.dat.",
		&showCfg)
	parser.AddCommand("dump",
		"Rewrite the payments snapshot file in the current format",
		"Verify mnpayments.dat and rewrite it.  A missing or "+
			"malformed file is recreated empty.",
		&dumpCfg)

	// Parse command line and invoke the Execute function for the
	// specified command.
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		} else {
			log.Error(err)
		}

		return err
	}

	return nil
}

func main() {
	// Work around defer not working after os.Exit().
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
