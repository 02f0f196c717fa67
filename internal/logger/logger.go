package logger

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd())

func paint(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + colorReset
}

func line(color, mark, tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(color, mark), paint(colorBold, "["+tag+"]"), msg)
}

// Info logs a neutral progress message.
func Info(tag, msg string) { line(colorCyan, "•", tag, msg) }

// Success logs a completed step.
func Success(tag, msg string) { line(colorGreen, "✓", tag, msg) }

// Warn logs a recoverable problem.
func Warn(tag, msg string) { line(colorYellow, "!", tag, msg) }

// Error logs a failure. It does not exit; callers decide.
func Error(tag, msg string) { line(colorRed, "✗", tag, msg) }

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(colorCyan, "────────────────────────────────────────"))
	fmt.Printf("%s %s\n", paint(colorBold, "B5 Factor Engine"), paint(colorGray, version))
	fmt.Println(paint(colorCyan, "────────────────────────────────────────"))
}

// Section prints a visual divider for a named startup phase.
func Section(name string) {
	fmt.Printf("%s %s\n", paint(colorGray, "──"), paint(colorBold, name))
}

// Stats prints a single key/value statistic.
func Stats(key string, value interface{}) {
	fmt.Printf("   %s %v\n", paint(colorGray, key+":"), value)
}

// Server announces the listen address.
func Server(addr string) {
	fmt.Printf("%s listening on %s\n", paint(colorGreen, "▸"), paint(colorBold, "http://"+addr))
}
