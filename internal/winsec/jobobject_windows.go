//go:build windows

package winsec

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// JobObject wraps a Windows job object used to terminate a spawned
// shell's entire process tree. There is no POSIX process-group signal to
// lean on here: a job object is the correct primitive — every process
// the child (and its descendants, since new children inherit job
// membership) spawns dies when the job is terminated.
type JobObject struct {
	handle windows.Handle
}

// NewJobObject creates an unnamed job object.
func NewJobObject() (*JobObject, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("winsec: CreateJobObject: %w", err)
	}
	return &JobObject{handle: h}, nil
}

// Assign adds the process identified by pid to the job. Must be called
// before the process has a chance to spawn grandchildren, ideally
// immediately after the adapter starts it.
func (j *JobObject) Assign(pid int) error {
	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("winsec: OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(proc)

	if err := windows.AssignProcessToJobObject(j.handle, proc); err != nil {
		return fmt.Errorf("winsec: AssignProcessToJobObject: %w", err)
	}
	return nil
}

// TerminateAll kills every process currently in the job. Errors are the
// caller's to decide whether to swallow; session.Kill swallows them per
// spec (§4.4: "errors are swallowed").
func (j *JobObject) TerminateAll() error {
	if err := windows.TerminateJobObject(j.handle, 1); err != nil {
		return fmt.Errorf("winsec: TerminateJobObject: %w", err)
	}
	return nil
}

// Close releases the job object handle. Closing it without terminating
// first just detaches it from any still-running member processes; it
// does not kill them.
func (j *JobObject) Close() error {
	return windows.CloseHandle(j.handle)
}
