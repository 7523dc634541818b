// Command validate checks published output documents against their
// contract: known state codes, value ranges, sorted distinct years, metadata
// consistent with records, and nullable fields present as null rather than
// omitted.
//
// Usage:
//
//	go run ./cmd/validate -dir public/data [-require-all]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
)

// phase tracks pass/fail for one document.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) addAll(errs []error) {
	for _, err := range errs {
		p.errors = append(p.errors, err.Error())
	}
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "public/data", "directory containing the published JSON documents")
	requireAll := flag.Bool("require-all", false, "fail when a document is missing")
	flag.Parse()

	os.Exit(run(*dir, *requireAll))
}

func run(dir string, requireAll bool) int {
	ref := domain.DefaultRefData()

	fmt.Println("=== Output Document Validation ===")
	fmt.Println()

	phases := []*phase{
		check(dir, output.ChartFileName, requireAll, func(p *phase, body []byte) {
			var f output.ChartFile
			if decode(p, body, &f) {
				p.addAll(output.ValidateChart(f, ref))
				checkNulls(p, body, "points", output.ChartPoint{})
			}
		}),
		check(dir, output.UtilityFileName, requireAll, func(p *phase, body []byte) {
			var f output.UtilityFile
			if decode(p, body, &f) {
				p.addAll(output.ValidateUtilities(f, ref))
				checkNulls(p, body, "utilities", output.UtilityRecord{})
			}
		}),
		check(dir, output.OutageFileName, requireAll, func(p *phase, body []byte) {
			var f output.OutageFile
			if decode(p, body, &f) {
				p.addAll(output.ValidateOutages(f, ref))
				checkNulls(p, body, "stateYearSummary", output.StateYearSummary{})
			}
		}),
		check(dir, output.WholesaleFileName, requireAll, func(p *phase, body []byte) {
			var f output.WholesaleFile
			if decode(p, body, &f) {
				p.addAll(output.ValidateWholesale(f, ref))
				checkNulls(p, body, "points", output.WholesalePoint{})
			}
		}),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP (not found)\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-28s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// check loads one document and runs fn over it.
func check(dir, name string, requireAll bool, fn func(p *phase, body []byte)) *phase {
	p := &phase{name: name}
	body, err := os.ReadFile(filepath.Join(dir, name))
	switch {
	case errors.Is(err, fs.ErrNotExist) && !requireAll:
		p.skipped = true
	case err != nil:
		p.errorf("read: %v", err)
	default:
		fn(p, body)
	}
	return p
}

func decode(p *phase, body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		p.errorf("decode: %v", err)
		return false
	}
	return true
}

// checkNulls verifies every element of the list under key carries all the
// fields its Go type serializes, so nullable values appear as null.
func checkNulls(p *phase, body []byte, key string, zero any) {
	want, err := fieldNames(zero)
	if err != nil {
		p.errorf("field names: %v", err)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		p.errorf("decode: %v", err)
		return
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw[key], &items); err != nil {
		p.errorf("decode %s: %v", key, err)
		return
	}

	for i, item := range items {
		for _, field := range want {
			if _, ok := item[field]; !ok {
				p.errorf("%s[%d]: field %q omitted", key, i, field)
			}
		}
	}
}

// fieldNames lists the JSON keys of a zero value, sorted.
func fieldNames(zero any) ([]string, error) {
	b, err := json.Marshal(zero)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names, nil
}
