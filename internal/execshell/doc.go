// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and redacts credential material embedded in push
// remotes before any argument or error text reaches a log line.
package execshell
