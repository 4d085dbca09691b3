package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Color functions shared across the output layer
var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// Logger writes status messages to stderr so stdout stays reserved for
// machine-readable output (--json, --csv).
type Logger struct {
	out *os.File
}

func NewLogger() Logger {
	return Logger{out: os.Stderr}
}

// InfoM logs an informational message tagged with the calling module
func (l Logger) InfoM(msg string, module string) {
	fmt.Fprintf(l.out, "[%s] %s\n", cyan(module), msg)
}

// SuccessM logs a success message tagged with the calling module
func (l Logger) SuccessM(msg string, module string) {
	fmt.Fprintf(l.out, "[%s] %s\n", green(module), msg)
}

// WarnM logs a warning message tagged with the calling module
func (l Logger) WarnM(msg string, module string) {
	fmt.Fprintf(l.out, "[%s] %s %s\n", yellow(module), yellow("WARN:"), msg)
}

// ErrorM logs an error message tagged with the calling module
func (l Logger) ErrorM(msg string, module string) {
	fmt.Fprintf(l.out, "[%s] %s %s\n", red(module), red("ERROR:"), msg)
}

// FatalM logs an error message and exits with status 1
func (l Logger) FatalM(msg string, module string) {
	fmt.Fprintf(l.out, "[%s] %s %s\n", red(module), red("FATAL:"), msg)
	os.Exit(1)
}

// LoadFileLinesIntoArray reads a file and returns its non-empty lines
func LoadFileLinesIntoArray(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
