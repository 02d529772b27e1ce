// Package liveness reports whether an operating system process is still
// running.
package liveness

// Prober checks whether the process with the given id is running.
type Prober interface {
	IsRunning(pid int) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(pid int) bool

// IsRunning calls f(pid).
func (f ProberFunc) IsRunning(pid int) bool { return f(pid) }

// OS returns a Prober that asks the operating system.
func OS() Prober { return ProberFunc(isRunning) }
