package datarecording

import (
	"os"
	"strings"
	"time"
)

const execTableName = "exec_info"

// ExecInfo is a property of the process that ran a simulation.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how the simulator was invoked and when it ran.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(execTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start remembers the start time, the command line and the working
// directory.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", timestamp(time.Now())},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// Record adds a free-form property.
func (e *ExecRecorder) Record(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes all the properties along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(execTableName, entry)
	}

	e.recorder.InsertData(execTableName,
		ExecInfo{"End Time", timestamp(time.Now())})

	e.entries = nil

	e.recorder.Flush()
}

func timestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000000000")
}
