package matcher_test

import (
	"fmt"

	"github.com/softwired/margo/matcher"
	"github.com/softwired/margo/parser"
)

func ExampleRules_Match() {
	ruleSet, err := parser.New().Parse(`
0	string	MATLAB	Matlab v
>7	string	5	\bersion 5 mat-file
!:mime	application/x-matlab-data
`)
	if err != nil {
		fmt.Println("parse error:", err)
		return
	}
	rules, err := matcher.Compile(ruleSet)
	if err != nil {
		fmt.Println("compile error:", err)
		return
	}

	res := rules.Match([]byte("MATLAB 5.0 MAT-file"))
	fmt.Println(res.Description)
	fmt.Println(res.Mime)
	// Output:
	// Matlab version 5 mat-file
	// application/x-matlab-data
}
