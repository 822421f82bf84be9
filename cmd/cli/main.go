package main

import (
	"fmt"
	"os"

	"github.com/waftester/scantriage/pkg/cli"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	switch cli.Command(os.Args[1]) {
	case cli.CommandAnalyze:
		os.Exit(runAnalyze(os.Args[2:]))
	case cli.CommandRules, "signatures":
		os.Exit(runRules(os.Args[2:]))
	case cli.CommandVersion, "-v", "--version":
		ui.PrintVersion()
	case cli.CommandHelp, "-h", "--help":
		printUsage()
	default:
		// A bare path is shorthand for "analyze <path>".
		os.Exit(runAnalyze(os.Args[1:]))
	}
}

func printUsage() {
	ui.PrintBanner()
	os.Stderr.Sync()

	fmt.Println(ui.SectionStyle.Render("USAGE"))
	fmt.Println()
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" analyze [flags] <session-file>"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" rules [-category name] [-json]"))
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("analyze"), "Classify a Burp XML, HAR or JSON Lines session and write reports")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("rules  "), "List the signature catalog")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("version"), "Print the version")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("EXAMPLES"))
	fmt.Println()
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" analyze shop.xml"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" analyze -confidence high -sarif -o reports/ shop.har"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(defaults.ToolName+" analyze -config scantriage.yaml -metrics-addr :9090 capture.jsonl"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.HelpStyle.Render("Run '"+defaults.ToolName+" analyze -h' for every flag."))
}
