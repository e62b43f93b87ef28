package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// goos is swapped out in tests to reach every launcher branch.
var goos = func() string { return runtime.GOOS }

// OpenBrowser launches the system browser at url. The OAuth flows use it to
// hand the user off to the consent page; the command is started but not
// waited on, since the callback server picks the flow back up.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch platform := goos(); platform {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("no browser launcher for platform %q", platform)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}

	return nil
}
