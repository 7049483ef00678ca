package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"mediagrab/internal/api"
	"mediagrab/internal/jobs"
	"mediagrab/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// jobStatusKind maps a job status onto a status line severity.
func jobStatusKind(status jobs.Status) statusKind {
	switch status {
	case jobs.StatusDone:
		return statusOK
	case jobs.StatusError:
		return statusError
	case jobs.StatusCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func preflightLine(result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusError, result.Detail, colorize)
}

// dependencyLines renders one line per dependency. Missing required tools
// are errors and missing optional ones are warnings.
func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		label := strings.TrimSpace(dep.Name)
		if label == "" {
			label = dep.Command
		}
		switch {
		case dep.Available:
			msg := "Ready"
			if dep.Path != "" {
				msg = fmt.Sprintf("Ready (%s)", dep.Path)
			}
			lines = append(lines, renderStatusLine(label, statusOK, msg, colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(label, statusWarn, dependencyDetail(dep), colorize))
		default:
			lines = append(lines, renderStatusLine(label, statusError, dependencyDetail(dep), colorize))
		}
	}
	return lines
}

func dependencyDetail(dep api.DependencyStatus) string {
	if detail := strings.TrimSpace(dep.Detail); detail != "" {
		return detail
	}
	return "not available"
}
