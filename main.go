package main

import (
	"fmt"
	"os"

	"github.com/softwired/margo/ast"
	"github.com/softwired/margo/parser"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <magic-file>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]

	p := parser.New()

	ruleSet, err := p.ParseFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", filename, err)
		os.Exit(1)
	}

	// Print summary
	fmt.Printf("Parsed %d rules from %s\n", len(ruleSet.Rules), filename)

	// Print rule roots
	for _, r := range ruleSet.Rules {
		label := r.Root.Message
		if r.Name != "" {
			label = "name: " + r.Name
		}
		fmt.Printf("  - line %d (tests: %d) %s\n", r.Root.Line, countTests(r.Root), label)
	}
}

func countTests(t *ast.Test) int {
	n := 1
	for _, c := range t.Children {
		n += countTests(c)
	}
	return n
}
