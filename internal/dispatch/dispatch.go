// Package dispatch classifies complete TCL frames handed up by
// internal/framer and parses the print-template command into a structured
// form the print-job state machine can act on.
package dispatch

import (
	"fmt"
	"strconv"
)

// Kind identifies which of the recognized frame shapes a frame matched.
type Kind int

const (
	// KindUnrecognized covers any frame that matches none of the patterns
	// below. The caller logs and drops it; there is no negative
	// acknowledgement on the wire.
	KindUnrecognized Kind = iota
	// KindStatusRequest is "^S|^".
	KindStatusRequest
	// KindExtendedStatusRequest is "^Se|^".
	KindExtendedStatusRequest
	// KindClearErrorFlags is "^C|^", a no-op hook in this core.
	KindClearErrorFlags
	// KindPrintTemplate is "^P|<tid>|<copies>|<f1>|...|<fN>|^".
	KindPrintTemplate
)

// PrintCommand is the parsed payload of a KindPrintTemplate frame.
type PrintCommand struct {
	TemplateID byte
	Copies     int
	Fields     []string
}

// Classify determines the Kind of a complete frame (opening and closing
// '^' guaranteed by the caller). It does not parse print commands; call
// ParsePrint separately once a frame classifies as KindPrintTemplate.
func Classify(frame []byte) Kind {
	switch {
	case string(frame) == "^S|^":
		return KindStatusRequest
	case string(frame) == "^Se|^":
		return KindExtendedStatusRequest
	case string(frame) == "^C|^":
		return KindClearErrorFlags
	case isPrintFrame(frame):
		return KindPrintTemplate
	default:
		return KindUnrecognized
	}
}

func isPrintFrame(frame []byte) bool {
	if len(frame) < 5 {
		return false
	}
	if frame[0] != '^' || frame[1] != 'P' || frame[2] != '|' {
		return false
	}
	return frame[len(frame)-2] == '|'
}

// ParsePrint extracts the template id, copy count, and data fields from a
// frame already classified as KindPrintTemplate. The frame's "^P|" prefix
// and "|^" suffix are stripped before splitting the remainder on '|'.
func ParsePrint(frame []byte) (PrintCommand, error) {
	body := frame[3 : len(frame)-2]
	parts := splitPipe(body)
	if len(parts) < 2 {
		return PrintCommand{}, fmt.Errorf("dispatch: print command has %d field(s), need at least 2", len(parts))
	}

	templateID := parts[0]
	if len(templateID) != 1 {
		return PrintCommand{}, fmt.Errorf("dispatch: template id %q must be exactly one character", templateID)
	}

	copies, err := strconv.Atoi(parts[1])
	if err != nil {
		return PrintCommand{}, fmt.Errorf("dispatch: copies %q is not a decimal integer: %w", parts[1], err)
	}
	if copies < 1 || copies > 9999 {
		return PrintCommand{}, fmt.Errorf("dispatch: copies %d out of range [1, 9999]", copies)
	}

	return PrintCommand{
		TemplateID: templateID[0],
		Copies:     copies,
		Fields:     parts[2:],
	}, nil
}

func splitPipe(b []byte) []string {
	var parts []string
	start := 0
	for i, c := range b {
		if c == '|' {
			parts = append(parts, string(b[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, string(b[start:]))
	return parts
}
