// gtest compiles every AST under testdata/ and compares the listing against its .golden file.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/codegen"
	"github.com/xplshn/gpl0/pkg/config"
	"github.com/xplshn/gpl0/pkg/symtab"
)

type FileTestResult struct {
	File     string        `json:"file"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Checksum string        `json:"checksum,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.String("generate-golden", "", "Write the .golden listing for the given AST file.")
	testFiles      = flag.String("test-files", "testdata/*.json", "Glob pattern(s) for ASTs to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}
	handleRunTestSuite()
}

func goldenPath(file string) string { return strings.TrimSuffix(file, filepath.Ext(file)) + ".golden" }

// flagsFor reads the optional <name>.flags file holding -W/-F switches for one test.
func flagsFor(file string) []string {
	data, err := os.ReadFile(strings.TrimSuffix(file, filepath.Ext(file)) + ".flags")
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}

// compile runs the whole pipeline in-process and returns the listing.
func compile(file string) (string, uint64, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", 0, err
	}
	tree, err := ast.DecodeBytes(data)
	if err != nil {
		return "", 0, err
	}
	cfg := config.NewConfig()
	cfg.ProcessFlags(flagsFor(file))
	if cfg.IsFeatureEnabled(config.FeatFold) {
		ast.FoldConstants(tree, tree.Root)
	}
	tab, err := symtab.Build(tree)
	if err != nil {
		return "", 0, err
	}
	prog, err := codegen.NewContext(cfg).Generate(tree, tab)
	if err != nil {
		return "", 0, err
	}
	return prog.String(), prog.Checksum(), nil
}

func handleGenerateGolden(file string) {
	log.Printf("Generating golden file for %s...\n", file)
	listing, _, err := compile(file)
	if err != nil {
		// A failing AST records its error so the failure itself is checked.
		listing = "error: " + err.Error() + "\n"
	}
	golden := goldenPath(file)
	if err := os.WriteFile(golden, []byte(listing), 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, golden, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, golden)
}

func handleRunTestSuite() {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[uint64]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		// The same AST under different flags is a different test.
		h := xxhash.Sum64String(string(data) + "\x00" + strings.Join(flagsFor(file), " "))
		if originalFile, seen := seenHashes[h]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[h] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	if hasFailures(writeJSONReport(allResults)) {
		os.Exit(1)
	}
}

func testFile(file string) *FileTestResult {
	want, err := os.ReadFile(goldenPath(file))
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .golden file"}
	} else if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}

	start := time.Now()
	got, sum, err := compile(file)
	elapsed := time.Since(start)
	if err != nil {
		got = "error: " + err.Error() + "\n"
	}
	if *verbose {
		log.Printf("[%s] compiled in %s", filepath.Base(file), elapsed)
	}

	if diff := cmp.Diff(string(want), got); diff != "" {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Listing mismatch (-golden +got)", Diff: diff, Duration: elapsed}
	}
	res := &FileTestResult{File: file, Status: "PASS", Message: "Listing matches", Duration: elapsed}
	if err == nil {
		res.Checksum = fmt.Sprintf("%016x", sum)
	}
	return res
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		name := filepath.Base(result.File)
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("%s[PASS]%s %s\n", cGreen, cNone, name)
		case "FAIL":
			failed++
			fmt.Printf("%s[FAIL]%s %s: %s\n%s", cRed, cNone, name, result.Message, formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("%s[SKIP]%s %s: %s\n", cYellow, cNone, name, result.Message)
		default:
			errored++
			fmt.Printf("%s[ERROR]%s %s: %s\n", cRed, cNone, name, result.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}
	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", *outputJSON)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() && !seen[absFile] {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
