package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/softwired/margo/matcher"
	"github.com/softwired/margo/parser"
)

// maxScanBytes caps how much of each file is read; magic tests live near
// the front of a file.
const maxScanBytes = 1 << 20

var (
	magicPath string
	showAll   bool
	showMime  bool

	scanCmd = &cobra.Command{
		Use:   "scan -m CORPUS FILE...",
		Short: "Classify files against a magic corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
)

func init() {
	scanCmd.Flags().StringVarP(&magicPath, "magic", "m", "", "Magic corpus file (required)")
	scanCmd.Flags().BoolVar(&showAll, "all", false, "Print every matching rule, strongest first")
	scanCmd.Flags().BoolVar(&showMime, "mime", false, "Print the MIME type instead of the description")
	scanCmd.MarkFlagRequired("magic") //nolint:errcheck
}

func runScan(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(magicPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range args {
		buf, err := readHead(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if showAll {
			for _, res := range rules.MatchAll(buf) {
				fmt.Fprintf(out, "%s: %s\n", name, formatResult(res))
			}
			continue
		}
		res := rules.Match(buf)
		if res == nil {
			fmt.Fprintf(out, "%s: data\n", name)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", name, formatResult(res))
	}
	return nil
}

func loadRules(path string) (*matcher.Rules, error) {
	ruleSet, err := parser.New().ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	rules, err := matcher.Compile(ruleSet)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	ruleCount, named := rules.Stats()
	log.Info().Str("corpus", path).Int("rules", ruleCount).Int("named", named).Msg("corpus loaded")
	return rules, nil
}

func readHead(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxScanBytes))
}

func formatResult(res *matcher.Result) string {
	if showMime {
		if res.Mime == "" {
			return "application/octet-stream"
		}
		return res.Mime
	}
	var b strings.Builder
	b.WriteString(res.Description)
	if res.Mime != "" {
		fmt.Fprintf(&b, " [%s]", res.Mime)
	}
	if len(res.Extensions) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(res.Extensions, "/"))
	}
	return b.String()
}
