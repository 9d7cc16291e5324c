package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "demo":
		if err := demo(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "events":
		if err := events(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "prove":
		if err := prove(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("ticketry version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ticketry - ticket issuance and resale ledger

Usage:
  ticketry <command> [options]

Commands:
  demo       Run an end-to-end mint/list/buy scenario
  events     Show the audit trail from an event database
  prove      Generate and verify a settlement proof
  help       Show this help message
  version    Show version information

Examples:
  # Run the demo against a durable event store
  ticketry demo --db tickets.db

  # Inspect the recorded audit trail
  ticketry events tickets.db --stream market

  # Export the audit trail as CSV
  ticketry events tickets.db --csv audit.csv

  # Prove a fee split is exact
  ticketry prove --price 100000000000000000 --bips 500

For command-specific help, run:
  ticketry <command> --help`)
}
