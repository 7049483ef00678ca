package services

import (
	"errors"
	"fmt"
	"strings"

	"mediagrab/internal/jobs"
)

var (
	ErrExternalTool = errors.New("external tool error")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrCancelled    = errors.New("cancelled")
	ErrTransient    = errors.New("transient failure")
)

// ErrNoArtifact is reported when the engine succeeds but leaves no file behind.
var ErrNoArtifact = errors.New("no file found after download")

const noArtifactMessage = "No file found after download"

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a worker error to the terminal job status.
func FailureStatus(err error) jobs.Status {
	if errors.Is(err, ErrCancelled) {
		return jobs.StatusCancelled
	}
	return jobs.StatusError
}

type knownCause struct {
	needles []string
	message string
}

// Ordered: the first matching cause wins.
var knownCauses = []knownCause{
	{needles: []string{"unsupported url", "is not a valid url", "invalid url", "no video formats found", "incomplete youtube id", "invalid video id"}, message: "Unsupported or invalid URL"},
	{needles: []string{"requested format is not available", "requested format not available"}, message: "Requested quality is not available"},
	{needles: []string{"sign in to confirm", "login required", "age-restricted", "confirm your age", "members-only"}, message: "This video requires sign-in"},
	{needles: []string{"video unavailable", "private video", "has been removed", "this video is not available", "http error 404"}, message: "Video is unavailable"},
}

// UserMessage turns an engine or worker error into the text stored on a failed
// job. Known causes collapse to fixed phrases; anything else keeps the first
// line of the raw message with the tool's "ERROR:" prefix removed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoArtifact) {
		return noArtifactMessage
	}
	raw := err.Error()
	lower := strings.ToLower(raw)
	for _, cause := range knownCauses {
		for _, needle := range cause.needles {
			if strings.Contains(lower, needle) {
				return cause.message
			}
		}
	}
	return firstToolLine(rootCause(err).Error())
}

// rootCause follows Wrap's marker/cause pairs down to the innermost cause so
// stage context does not leak into user-facing text.
func rootCause(err error) error {
	for {
		multi, ok := err.(interface{ Unwrap() []error })
		if !ok {
			return err
		}
		errs := multi.Unwrap()
		if len(errs) < 2 || errs[len(errs)-1] == nil {
			return err
		}
		err = errs[len(errs)-1]
	}
}

func firstToolLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, "ERROR:"); idx >= 0 {
			line = strings.TrimSpace(line[idx+len("ERROR:"):])
		}
		for _, marker := range []error{ErrExternalTool, ErrValidation, ErrNotFound, ErrTransient} {
			line = strings.TrimPrefix(line, marker.Error()+": ")
		}
		if line != "" {
			return line
		}
	}
	return strings.TrimSpace(raw)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
