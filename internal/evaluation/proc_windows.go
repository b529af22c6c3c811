//go:build windows

package evaluation

import "os/exec"

// isolateProcessGroup keeps the default Process.Kill on cancellation.
// TODO: kill the whole tree with a job object once zenbot.bat runs are supported end to end.
func isolateProcessGroup(c *exec.Cmd) {}
