// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// reblock compresses single-sample GVCF files by merging reference
// records into GQ-banded reference blocks, demoting low quality
// variant calls to reference records, and cleaning up the annotations
// of high quality variant calls.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/reblock/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: gvcf")
	fmt.Fprint(os.Stderr, "\n", cmd.ReblockGVCFHelp)
}

func printExtendedHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: gvcf")
	fmt.Fprint(os.Stderr, "\n", cmd.ReblockGVCFExtendedHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "gvcf":
		err = cmd.ReblockGVCF()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	case "help-extended", "-help-extended", "--help-extended", "-he", "--he":
		printExtendedHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
