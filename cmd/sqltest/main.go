package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type Execution struct {
	Stdout         string        `json:"stdout"`
	Stderr         string        `json:"stderr"`
	ExitCode       int           `json:"exitCode"`
	Duration       time.Duration `json:"duration"`
	TimedOut       bool          `json:"timed_out"`
	UnstableOutput bool          `json:"unstable_output,omitempty"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Args   []string  `json:"args,omitempty"`
	Result Execution `json:"result"`
}

type TargetResult struct {
	Lexer string    `json:"lexer,omitempty"`
	Runs  []TestRun `json:"runs"`
}

type FileTestResult struct {
	File      string        `json:"file"`
	Hash      string        `json:"hash,omitempty"`
	Size      int64         `json:"size"`
	Status    string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string        `json:"message,omitempty"`
	Diff      string        `json:"diff,omitempty"`
	Baseline  string        `json:"baseline,omitempty"` // golden, reference, cached
	Reference *TargetResult `json:"reference,omitempty"`
	Target    *TargetResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

const (
	baselineGolden    = "golden"
	baselineReference = "reference"
	baselineCached    = "cached"
)

type Report struct {
	RunID    string           `json:"run_id"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Results  TestSuiteResults `json:"results"`
}

var (
	refLexer       = flag.String("ref-lexer", "", "Path to a reference sqltok binary to compare against.")
	refArgs        = flag.String("ref-args", "", "Extra arguments for the reference lexer (space-separated).")
	targetLexer    = flag.String("target-lexer", "./sqltok", "Path to the sqltok binary under test.")
	targetArgs     = flag.String("target-args", "", "Extra arguments for the target lexer (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given .sql file.")
	testFiles      = flag.String("test-files", "tests/*.sql", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each lexer execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	runs           = flag.Int("runs", 3, "Number of times to run each mode to find the minimum duration.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Prefer golden files over the reference lexer.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to the .sql file's dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

// inputPlaceholder replaces the path of the .sql file in captured output, so
// goldens do not depend on where the suite is checked out.
const inputPlaceholder = "__INPUT__"

// modes are the sqltok invocations every file is run under.
var modes = map[string][]string{
	"compat":       {"--format", "json"},
	"strict":       {"--std", "strict", "--format", "json"},
	"all_warnings": {"-Wall", "--format", "json"},
	"text":         {},
}

const (
	cRed     = "\x1b[91m"
	cYellow  = "\x1b[93m"
	cGreen   = "\x1b[92m"
	cCyan    = "\x1b[96m"
	cMagenta = "\x1b[95m"
	cBold    = "\x1b[1m"
	cNone    = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *runs < 1 {
		*runs = 1
	}
	if *jobs < 1 {
		*jobs = 1
	}
	setupInterruptHandler()

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}
	handleRunTestSuite()
}

func setupInterruptHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content and returns its size
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%016x", h.Sum64()), n, nil
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	result := runLexer(*targetLexer, strings.Fields(*targetArgs), sourceFile)
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
}

func handleRunTestSuite() {
	report := Report{RunID: uuid.NewString(), Started: time.Now()}

	refFound := false
	if *refLexer != "" {
		_, err := exec.LookPath(*refLexer)
		refFound = err == nil
		if !refFound {
			log.Printf("%s[WARN]%s Reference lexer '%s' not found. Will rely on golden files.\n", cYellow, cNone, *refLexer)
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}
	if *verbose {
		log.Printf("Run %s: %d file(s), %d job(s)\n", report.RunID, len(files), *jobs)
	}

	previous := loadPreviousResults()

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan *FileTestResult, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				resultsChan <- testFile(task, refFound, previous)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, size, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Hash: fileHash, Size: size, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- &FileTestResult{File: file, Hash: fileHash, Size: size}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults)
	report.Finished = time.Now()
	report.Results = make(TestSuiteResults, len(allResults))
	for _, r := range allResults {
		report.Results[r.File] = r
	}
	writeJSONReport(report)

	if hasFailures(report.Results) {
		os.Exit(1)
	}
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

// loadPreviousResults reads the last report so that an earlier reference
// run can stand in when neither a reference lexer nor a golden file exists.
func loadPreviousResults() TestSuiteResults {
	data, err := os.ReadFile(reportPath())
	if err != nil {
		return TestSuiteResults{}
	}
	var prev Report
	if err := json.Unmarshal(data, &prev); err != nil || prev.Results == nil {
		log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, reportPath())
		return TestSuiteResults{}
	}
	return prev.Results
}

func testFile(task *FileTestResult, refFound bool, previous TestSuiteResults) *FileTestResult {
	goldenFile := getJSONPath(task.File)
	_, err := os.Stat(goldenFile)
	hasGoldenFile := err == nil

	// 1st try: golden file, if asked to prefer it or there is no reference
	if hasGoldenFile && (*useCache || !refFound) {
		return testWithGoldenFile(task, goldenFile)
	}

	// 2nd try: run the reference lexer side by side
	if refFound {
		return testWithReferenceLexer(task)
	}

	// 3rd try: the previous report, if it recorded a reference result for identical content
	if prev, ok := previous[task.File]; ok && prev.Reference != nil && prev.Hash == task.Hash {
		log.Printf("[%s] Using cached reference result from previous test run.", task.File)
		target := runLexer(*targetLexer, strings.Fields(*targetArgs), task.File)
		task.Baseline = baselineCached
		res := compareResults(task, prev.Reference, target)
		res.Message += " (against cached reference)"
		return res
	}

	task.Status = "SKIP"
	task.Message = "No golden file, reference lexer or cached result to compare against"
	return task
}

func testWithGoldenFile(task *FileTestResult, goldenFile string) *FileTestResult {
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		task.Status, task.Message = "ERROR", fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)
		return task
	}
	var golden TargetResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		task.Status, task.Message = "ERROR", fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)
		return task
	}

	target := runLexer(*targetLexer, strings.Fields(*targetArgs), task.File)
	task.Baseline = baselineGolden
	return compareResults(task, &golden, target)
}

func testWithReferenceLexer(task *FileTestResult) *FileTestResult {
	var ref, target *TargetResult
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		ref = runLexer(*refLexer, strings.Fields(*refArgs), task.File)
	}()
	go func() {
		defer wg.Done()
		target = runLexer(*targetLexer, strings.Fields(*targetArgs), task.File)
	}()
	wg.Wait()

	task.Baseline = baselineReference
	return compareResults(task, ref, target)
}

func compareResults(task *FileTestResult, ref, target *TargetResult) *FileTestResult {
	var diffs strings.Builder
	failed := false

	targetRuns := make(map[string]TestRun, len(target.Runs))
	for _, run := range target.Runs {
		targetRuns[run.Name] = run
	}
	sort.Slice(ref.Runs, func(i, j int) bool { return ref.Runs[i].Name < ref.Runs[j].Name })

	ignored := ignoredSubstrings()
	for _, refRun := range ref.Runs {
		targetRun, ok := targetRuns[refRun.Name]
		if !ok {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' missing in target results.\n", refRun.Name)
			continue
		}

		if refRun.Result.UnstableOutput != targetRun.Result.UnstableOutput {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' output stability mismatch:\n  - Ref:    %v\n  - Target: %v\n", refRun.Name, refRun.Result.UnstableOutput, targetRun.Result.UnstableOutput)
		}
		if refRun.Result.ExitCode != targetRun.Result.ExitCode {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' exit code mismatch:\n  - Ref:    %d\n  - Target: %d\n", refRun.Name, refRun.Result.ExitCode, targetRun.Result.ExitCode)
		}

		refStdout := filterOutput(refRun.Result.Stdout, ignored)
		targetStdout := filterOutput(targetRun.Result.Stdout, ignored)
		if refStdout != targetStdout {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' STDOUT mismatch:\n%s", refRun.Name, cmp.Diff(refStdout, targetStdout))
		}
		refStderr := filterOutput(refRun.Result.Stderr, ignored)
		targetStderr := filterOutput(targetRun.Result.Stderr, ignored)
		if refStderr != targetStderr {
			failed = true
			fmt.Fprintf(&diffs, "Mode '%s' STDERR mismatch:\n%s", refRun.Name, cmp.Diff(refStderr, targetStderr))
		}
	}

	task.Reference, task.Target = ref, target
	if failed {
		task.Status, task.Message, task.Diff = "FAIL", "Output or exit code mismatch", diffs.String()
		return task
	}
	task.Status, task.Message = "PASS", "All modes matched"
	return task
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

// runLexer runs lexerPath over sourceFile once per mode, *runs times each,
// keeping the fastest duration and flagging output that changes between runs.
func runLexer(lexerPath string, extraArgs []string, sourceFile string) *TargetResult {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)

	ignored := ignoredSubstrings()
	result := &TargetResult{Lexer: filepath.Base(lexerPath)}
	for _, name := range names {
		args := append(append(append([]string{}, extraArgs...), modes[name]...), sourceFile)

		var first Execution
		var durations []time.Duration
		unstable := false
		for i := 0; i < *runs; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			res := executeCommand(ctx, lexerPath, args...)
			cancel()
			res.Stdout = normalizePath(res.Stdout, sourceFile)
			res.Stderr = normalizePath(res.Stderr, sourceFile)

			if i == 0 {
				first = res
			} else if first.ExitCode != res.ExitCode ||
				filterOutput(first.Stdout, ignored) != filterOutput(res.Stdout, ignored) ||
				filterOutput(first.Stderr, ignored) != filterOutput(res.Stderr, ignored) {
				unstable = true
				break
			}
			if res.TimedOut {
				break
			}
			durations = append(durations, res.Duration)
		}

		if len(durations) > 0 {
			sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
			first.Duration = durations[0]
		}
		first.UnstableOutput = unstable
		result.Runs = append(result.Runs, TestRun{Name: name, Args: modes[name], Result: first})
	}
	return result
}

func normalizePath(output, sourceFile string) string {
	output = strings.ReplaceAll(output, sourceFile, inputPlaceholder)
	return strings.ReplaceAll(output, filepath.Base(sourceFile), inputPlaceholder)
}

func ignoredSubstrings() []string {
	if *ignoreLines == "" {
		return nil
	}
	return strings.Split(*ignoreLines, ",")
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func totalDuration(r *TargetResult) time.Duration {
	var total time.Duration
	for _, run := range r.Runs {
		total += run.Result.Duration
	}
	return total
}

// timed reports whether result was compared against a reference lexer run
// side by side with the target in this run.
func timed(result *FileTestResult) bool {
	return result.Baseline == baselineReference && result.Target != nil && result.Reference != nil
}

// averageDurations averages the per-file total durations over the timed
// results; ok is false when there is nothing to compare.
func averageDurations(results []*FileTestResult) (avgTarget, avgRef time.Duration, ok bool) {
	var totalTarget, totalRef time.Duration
	compared := 0
	for _, result := range results {
		if !timed(result) {
			continue
		}
		compared++
		totalTarget += totalDuration(result.Target)
		totalRef += totalDuration(result.Reference)
	}
	if compared == 0 || totalTarget == 0 || totalRef == 0 {
		return 0, 0, false
	}
	return totalTarget / time.Duration(compared), totalRef / time.Duration(compared), true
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalBytes uint64

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s (%s)...\n", cCyan, result.File, cNone, humanize.Bytes(uint64(result.Size)))
		totalBytes += uint64(result.Size)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if *verbose && timed(result) {
			refRuns := make(map[string]TestRun, len(result.Reference.Runs))
			for _, run := range result.Reference.Runs {
				refRuns[run.Name] = run
			}
			for _, run := range result.Target.Runs {
				refRun, ok := refRuns[run.Name]
				if !ok {
					continue
				}
				color := cNone
				if run.Result.Duration < refRun.Result.Duration {
					color = cMagenta
				}
				fmt.Printf("    %-14s target: %s%s%s | reference: %s\n", run.Name, color, formatDuration(run.Result.Duration), cNone, formatDuration(refRun.Result.Duration))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total (%s of SQL)\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), humanize.Bytes(totalBytes))

	if avgTarget, avgRef, ok := averageDurations(results); ok {
		if avgTarget > avgRef {
			fmt.Printf("On average, %s%s%s was %s%.2fx%s slower than the reference.\n", cBold, filepath.Base(*targetLexer), cNone, cRed, float64(avgTarget)/float64(avgRef), cNone)
		} else if avgRef > avgTarget {
			fmt.Printf("On average, %s%s%s was %s%.2fx%s faster than the reference.\n", cBold, filepath.Base(*targetLexer), cNone, cGreen, float64(avgRef)/float64(avgTarget), cNone)
		}
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(report Report) {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(reportPath(), jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, reportPath(), err)
		return
	}
	fmt.Printf("Full test report (run %s) saved to %s\n", report.RunID, reportPath())
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
			if seen[absFile] {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
