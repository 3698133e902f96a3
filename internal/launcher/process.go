package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/easysoft/xuanxuan-host/internal/window"
)

// Process is a running window process.
type Process interface {
	Pid() int
	Wait() error
	Kill() error
}

// SpawnFunc starts the process for window name.
type SpawnFunc func(name string, opts window.Options) (Process, error)

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int    { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error { return p.cmd.Wait() }
func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

// ExecSpawner re-runs executable as "window --name <name> --endpoint <endpoint>
// --options <json>". An empty executable means the running binary.
func ExecSpawner(executable, endpoint string, debug bool) SpawnFunc {
	return func(name string, opts window.Options) (Process, error) {
		exe := executable
		if exe == "" {
			var err error
			if exe, err = os.Executable(); err != nil {
				return nil, fmt.Errorf("failed to get executable path: %w", err)
			}
		}

		optsJSON, err := json.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode window options: %w", err)
		}

		args := []string{"window", "--name", name, "--endpoint", endpoint, "--options", string(optsJSON)}
		if debug {
			args = append(args, "--debug")
		}

		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "XUANXUAN_WINDOW_CHILD=1")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start window process: %w", err)
		}
		return &execProcess{cmd: cmd}, nil
	}
}

// ExecTask starts a detached program during quit. Release lets it outlive
// the host.
type ExecTask struct {
	File string
	Args []string

	cmd *exec.Cmd
}

var _ window.QuitTask = (*ExecTask)(nil)

// NewExecTask creates a task running file with args.
func NewExecTask(file string, args []string) *ExecTask {
	return &ExecTask{File: file, Args: args}
}

// Start launches the program in its own session / process group.
func (t *ExecTask) Start() error {
	cmd := exec.Command(t.File, t.Args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", t.File, err)
	}
	t.cmd = cmd
	return nil
}

// Release drops the host's hold on the started process.
func (t *ExecTask) Release() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	return t.cmd.Process.Release()
}

// Pid returns the started process id, or 0 before Start.
func (t *ExecTask) Pid() int {
	if t.cmd == nil || t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
