// SPDX-License-Identifier: MIT

// Command cardcheck evaluates model cards for hosted-inference
// eligibility without a running gateway. It reads README files (or
// stdin) and prints the verdict per card.
//
// Exit codes: 0 all eligible, 1 at least one ineligible, 2 parse errors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/hubgate/internal/modelcard"
)

type result struct {
	Source   string             `json:"source"`
	Decision modelcard.Decision `json:"decision"`
	Err      string             `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cardcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "emit one JSON object per card")
	hasToken := fs.Bool("token", false, "evaluate as if an upstream token were configured")
	pipelineTag := fs.String("pipeline-tag", "", "hub pipeline tag to assume (overrides the card's own)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	files := fs.Args()
	var results []result

	if len(files) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "cardcheck: reading stdin: %v\n", err)
			return 2
		}
		results = append(results, check("stdin", data, *pipelineTag, *hasToken))
	}

	for _, path := range files {
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from the operator
		if err != nil {
			results = append(results, result{Source: path, Err: err.Error()})
			continue
		}
		results = append(results, check(path, data, *pipelineTag, *hasToken))
	}

	exit := 0
	for _, res := range results {
		if res.Err != "" {
			exit = 2
		} else if !res.Decision.Eligible && exit == 0 {
			exit = 1
		}
		emit(stdout, stderr, res, *asJSON)
	}
	return exit
}

func check(source string, data []byte, pipelineTag string, hasToken bool) result {
	card, err := modelcard.Parse(data)
	if err != nil {
		return result{Source: source, Err: err.Error()}
	}

	dec := modelcard.Evaluate(modelcard.Input{
		Card:        card,
		PipelineTag: pipelineTag,
		HasToken:    hasToken,
	})
	return result{Source: source, Decision: dec}
}

func emit(stdout, stderr io.Writer, res result, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(stdout)
		_ = enc.Encode(res)
		return
	}

	if res.Err != "" {
		fmt.Fprintf(stderr, "%s: error: %s\n", res.Source, res.Err)
		return
	}
	if res.Decision.Eligible {
		fmt.Fprintf(stdout, "%s: eligible (task: %s)\n", res.Source, res.Decision.Task)
		return
	}
	fmt.Fprintf(stdout, "%s: not eligible (%s)\n", res.Source, res.Decision.Reason)
}
