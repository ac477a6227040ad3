//go:build windows

package procrunner

import (
	"os/exec"
	"strconv"
)

func setProcAttributes(cmd *exec.Cmd) {
	// Process groups need job objects on Windows; taskkill below covers the
	// tree without them.
}

// killTree terminates the child and its descendants via taskkill.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
