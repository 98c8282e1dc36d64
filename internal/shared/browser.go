package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// test seam
var getRuntime = func() string { return runtime.GOOS }

// OpenBrowser opens the default system browser at url. Used by the login
// flow to send the user to the identity provider's authorize page.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch rt := getRuntime(); rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
