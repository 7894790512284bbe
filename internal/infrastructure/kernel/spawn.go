package kernel

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// SpawnEvaluator starts the external evaluator process when a spawn command
// is configured. Supervision stays with the operating system: the bridge
// keeps talking to whatever listens on its endpoints and never restarts the
// process itself.
func SpawnEvaluator(command string, logger *slog.Logger) (*exec.Cmd, error) {
	if command == "" {
		return nil, nil
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty evaluator spawn command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn evaluator: %w", err)
	}

	logger.Info("evaluator process started",
		"command", parts[0],
		"pid", cmd.Process.Pid)
	return cmd, nil
}
