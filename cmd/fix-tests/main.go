package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/xugu-publish/xugudef/testutil"
	"github.com/xugu-publish/xugudef/util"
)

// TestFailure is a test case whose expected output differs from what the
// generator produces now.
type TestFailure struct {
	TestName string
	YamlFile string
	Expected string
	Actual   string
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	pattern := "schema/testdata/*.yml"
	if len(os.Args) > 1 && os.Args[1] != "" {
		pattern = os.Args[1]
	}

	failures, err := collectFailures(pattern)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d failing tests\n", len(failures))

	categories := categorizeFailures(failures)
	fmt.Println("\n=== Failure Categories ===")
	for category, count := range util.CanonicalMapIter(categories) {
		fmt.Printf("  %s: %d\n", category, count)
	}

	fixed := 0
	for _, failure := range failures {
		if err := fixTest(failure); err != nil {
			log.Printf("Failed to fix test %s: %v", failure.TestName, err)
		} else {
			fixed++
		}
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Total failures: %d\n", len(failures))
	fmt.Printf("Fixed: %d\n", fixed)
	fmt.Printf("Failed to fix: %d\n", len(failures)-fixed)
	return nil
}

// collectFailures regenerates every test case with an expected output and
// reports the ones that no longer match. Cases expecting an error are left
// alone.
func collectFailures(pattern string) ([]TestFailure, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var failures []TestFailure
	for _, file := range files {
		tests, err := testutil.ReadTests(file)
		if err != nil {
			return nil, err
		}
		for name, test := range util.CanonicalMapIter(tests) {
			if test.Output == nil {
				continue
			}
			actual, err := testutil.Generate(test)
			if err != nil {
				log.Printf("Skipping %s: %v", name, err)
				continue
			}
			if strings.TrimSpace(actual) == strings.TrimSpace(*test.Output) {
				continue
			}
			failures = append(failures, TestFailure{
				TestName: name,
				YamlFile: file,
				Expected: *test.Output,
				Actual:   actual,
			})
		}
	}
	return failures, nil
}

func fixTest(failure TestFailure) error {
	if err := updateYamlFile(failure.YamlFile, failure.TestName, "output", failure.Actual); err != nil {
		return fmt.Errorf("failed to update YAML file: %w", err)
	}
	fmt.Printf("Fixed test: %s in %s\n", failure.TestName, filepath.Base(failure.YamlFile))
	return nil
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// updateYamlFile replaces the block scalar of field inside the top-level test
// case testName, leaving the rest of the file untouched.
func updateYamlFile(filename, testName, field, newValue string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")

	var result []string
	inTest := false
	replaced := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if indentOf(line) == 0 && trimmed != "" {
			inTest = trimmed == testName+":"
		}
		if !inTest || replaced || !strings.HasPrefix(trimmed, field+": |") {
			result = append(result, line)
			continue
		}

		fieldIndent := indentOf(line)
		result = append(result, line)
		for _, vline := range strings.Split(strings.TrimRight(newValue, "\n"), "\n") {
			result = append(result, strings.Repeat(" ", fieldIndent+2)+vline)
		}
		for i+1 < len(lines) {
			next := lines[i+1]
			if strings.TrimSpace(next) != "" && indentOf(next) <= fieldIndent {
				break
			}
			if strings.TrimSpace(next) == "" && (i+2 == len(lines) || strings.TrimSpace(lines[i+2]) != "" && indentOf(lines[i+2]) <= fieldIndent) {
				break
			}
			i++
		}
		replaced = true
	}
	if !replaced {
		return fmt.Errorf("no '%s: |' block in test %s", field, testName)
	}
	return os.WriteFile(filename, []byte(strings.Join(result, "\n")), 0644)
}

func categorizeFailures(failures []TestFailure) map[string]int {
	categories := make(map[string]int)
	for _, failure := range failures {
		categories[categorizeFailure(failure)]++
	}
	return categories
}

func categorizeFailure(failure TestFailure) string {
	exp := strings.Split(strings.TrimSpace(failure.Expected), "\n")
	act := strings.Split(strings.TrimSpace(failure.Actual), "\n")

	if len(exp) == len(act) {
		expSet := make(map[string]bool)
		for _, line := range exp {
			expSet[strings.TrimSpace(line)] = true
		}
		reordered := true
		for _, line := range act {
			if !expSet[strings.TrimSpace(line)] {
				reordered = false
				break
			}
		}
		if reordered {
			return "Statement ordering differences"
		}
	}

	if strings.ReplaceAll(failure.Expected, `"`, "") == strings.ReplaceAll(failure.Actual, `"`, "") {
		return "Quoting differences"
	}
	if strings.Count(failure.Actual, "GRANT ")+strings.Count(failure.Actual, "REVOKE ") !=
		strings.Count(failure.Expected, "GRANT ")+strings.Count(failure.Expected, "REVOKE ") {
		return "Authority reconciliation differences"
	}
	if len(act) != len(exp) {
		return "Statement count differences"
	}
	return "Other"
}

