package main

import (
	"fmt"
	"strings"

	"tileseed/reconcile"
)

const reportSample = 10

// printReport renders the run verdict on stdout. Presentation only; every
// number comes straight out of the structured report.
func printReport(project *Project, report *reconcile.RunReport) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Printf("RUN %s: %s\n", report.RunID, strings.ToUpper(string(report.Outcome)))
	fmt.Println(line)
	fmt.Printf("Project:         %s\n", project.Name)
	fmt.Printf("Expected Tiles:  %d\n", report.Final.Expected)
	fmt.Printf("Valid Tiles:     %d\n", report.Final.Valid)
	fmt.Printf("Missing Tiles:   %d\n", report.Final.MissingCount())
	fmt.Printf("Completion Rate: %.1f%%\n", report.Final.CompletionRate)

	for _, round := range report.Rounds {
		fmt.Printf("Round %d:         %d attempted, %d recovered, %d failed (%.1fs)\n",
			round.Round, round.Attempted, round.Recovered, round.Failed, round.Elapsed.Seconds())
	}

	if n := len(report.Final.Missing); n > 0 {
		fmt.Println("Remaining missing tiles:")
		for i, c := range report.Final.Missing {
			if i == reportSample {
				fmt.Printf("  ... and %d more\n", n-reportSample)
				break
			}
			fmt.Printf("  %s\n", c)
		}
	}
	fmt.Println(line)
}
