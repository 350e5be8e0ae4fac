package app

import (
	"strings"
	"time"
)

// Operation describes one CLI invocation. Its ID tags every log line the
// invocation writes, so a single command can be followed through ct.log.
type Operation struct {
	ID      string
	Command string
	Args    []string
	Started time.Time
	Status  string // "running", "success" or "error"
}

// NewOperation starts an operation at now.
func NewOperation(command string, args []string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Command: command,
		Args:    append([]string(nil), args...),
		Started: now,
		Status:  "running",
	}
}

// Finish records the outcome of the operation.
func (op *Operation) Finish(err error) {
	if err != nil {
		op.Status = "error"
		return
	}
	op.Status = "success"
}

func (op *Operation) String() string {
	if len(op.Args) == 0 {
		return op.Command
	}
	return op.Command + " " + strings.Join(op.Args, " ")
}
