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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/exascience/reblock/intervals"
	"github.com/exascience/reblock/reblock"
)

// ReblockGVCFHelp is the help string for this command.
const ReblockGVCFHelp = "\ngvcf parameters:\n" +
	"reblock gvcf input.g.vcf[.gz] output.g.vcf[.gz]\n" +
	"[--gvcf-gq-bands nr[,nr]+]\n" +
	"[--rgq-threshold nr]\n" +
	"[--drop-low-quals]\n" +
	"[--do-qual-approx]\n" +
	"[--include-non-variant-sites=true|false]\n" +
	"[--annotation name[,name]+]\n" +
	"[--target-regions bed-file]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// ReblockGVCFExtendedHelp is the extended help string for this command.
const ReblockGVCFExtendedHelp = ReblockGVCFHelp +
	"[--stand-call-conf nr]\n" +
	"[--heterozygosity nr]\n" +
	"[--indel-heterozygosity nr]\n" +
	"[--profile file]\n"

// ReblockGVCF implements the reblock gvcf command.
func ReblockGVCF() error {
	config := reblock.DefaultConfig()
	genotyper := reblock.NewPLGenotyper()
	var (
		gqBands, annotationNames string
		targetRegions            string
		profile, logPath         string
		nrOfThreads              int
		timed                    bool
	)

	var flags flag.FlagSet

	flags.StringVar(&gqBands, "gvcf-gq-bands", "20,100", "exclusive upper bounds of the GQ bands for reference blocks")
	flags.Float64Var(&config.RGQThreshold, "rgq-threshold", 0, "reference confidence below which variant calls are demoted to reference blocks")
	flags.BoolVar(&config.DropLowQuals, "drop-low-quals", false, "drop low quality records and uncalled alternate alleles instead of demoting them")
	flags.BoolVar(&config.DoQualApprox, "do-qual-approx", false, "add QUALapprox and VarDP annotations to variant records")
	flags.BoolVar(&config.IncludeNonVariants, "include-non-variant-sites", true, "keep records that are not properly polymorphic")
	flags.StringVar(&annotationNames, "annotation", "", "comma-separated list of site annotations to keep (default "+defaultAnnotationNames()+")")
	flags.StringVar(&targetRegions, "target-regions", "", "only reblock records overlapping the regions in the given BED file")
	flags.Float64Var(&genotyper.StandCallConf, "stand-call-conf", reblock.DefaultStandCallConf, "QUAL below which variant records are filtered as LowQual")
	flags.Float64Var(&genotyper.Heterozygosity, "heterozygosity", reblock.DefaultHeterozygosity, "heterozygosity prior for SNPs")
	flags.Float64Var(&genotyper.IndelHeterozygosity, "indel-heterozygosity", reblock.DefaultIndelHeterozygosity, "heterozygosity prior for indels")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ReblockGVCFHelp)

	input := getFilename(os.Args[2], ReblockGVCFHelp)
	output := getFilename(os.Args[3], ReblockGVCFHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	fileChecks := []error{
		checkInputFile("", input),
		checkOutputFile("", output),
	}
	if profile != "" {
		fileChecks = append(fileChecks, checkOutputFile("--profile", profile))
	}
	if targetRegions != "" {
		fileChecks = append(fileChecks, checkInputFile("--target-regions", targetRegions))
	}
	for _, err := range fileChecks {
		if err != nil {
			log.Println("Error:", err)
			sanityChecksFailed = true
		}
	}

	bands, err := parseIntList(gqBands)
	if err != nil {
		log.Println("Error: Invalid --gvcf-gq-bands:", err)
		sanityChecksFailed = true
	}
	config.GQBands = bands

	annotations := reblock.DefaultAnnotations()
	if annotationNames != "" {
		if annotations, err = reblock.LookupAnnotations(parseNameList(annotationNames)); err != nil {
			log.Println("Error: Invalid --annotation:", err)
			sanityChecksFailed = true
		}
	}

	if err := genotyper.Validate(); err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if targetRegions != "" && !sanityChecksFailed {
		if config.Targets, err = intervals.FromBedFile(targetRegions); err != nil {
			log.Println("Error:", err)
			sanityChecksFailed = true
		}
	}

	var reblocker *reblock.Reblocker
	if !sanityChecksFailed {
		if reblocker, err = reblock.New(config, genotyper, annotations); err != nil {
			log.Println("Error:", err)
			sanityChecksFailed = true
		}
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ReblockGVCFHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " gvcf ", input, " ", output)
	fmt.Fprint(&command, " --gvcf-gq-bands ", gqBands)
	fmt.Fprint(&command, " --rgq-threshold ", config.RGQThreshold)
	if config.DropLowQuals {
		fmt.Fprint(&command, " --drop-low-quals")
	}
	if config.DoQualApprox {
		fmt.Fprint(&command, " --do-qual-approx")
	}
	fmt.Fprint(&command, " --include-non-variant-sites=", config.IncludeNonVariants)
	if annotationNames != "" {
		fmt.Fprint(&command, " --annotation ", annotationNames)
	}
	if targetRegions != "" {
		fmt.Fprint(&command, " --target-regions ", targetRegions)
	}
	fmt.Fprint(&command, " --stand-call-conf ", genotyper.StandCallConf)
	fmt.Fprint(&command, " --heterozygosity ", genotyper.Heterozygosity)
	fmt.Fprint(&command, " --indel-heterozygosity ", genotyper.IndelHeterozygosity)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	return timedRun(timed, profile, "Reblocking GVCF file.", 1, func() error {
		return reblocker.ReblockFile(input, output, strings.Fields(command.String()))
	})
}

func defaultAnnotationNames() string {
	var names []string
	for _, annotation := range reblock.DefaultAnnotations() {
		names = append(names, annotation.Name)
	}
	return strings.Join(names, ",")
}
