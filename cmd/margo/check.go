package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/softwired/margo/matcher"
	"github.com/softwired/margo/parser"
)

var checkCmd = &cobra.Command{
	Use:   "check CORPUS...",
	Short: "Compile magic corpora and report what they contain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, path := range args {
		ruleSet, err := parser.New().ParseFile(path)
		if err != nil {
			return err
		}
		rules, err := matcher.Compile(ruleSet)
		if err != nil {
			return err
		}
		ruleCount, named := rules.Stats()
		fmt.Fprintf(out, "%s: %d rules (%d named)\n", path, ruleCount, named)
	}
	return nil
}
