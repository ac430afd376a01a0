package mpv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBinary is the mpv executable looked up on PATH.
const DefaultBinary = "mpv"

// Process is a spawned idle mpv instance.
type Process struct {
	cmd    *exec.Cmd
	socket string
	exited chan struct{}
}

// Start launches mpv listening on socket. It does not wait for the socket.
func Start(binary, socket string, extra []string) (*Process, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--idle=yes",
		"--keep-open=yes",
		"--input-ipc-server=" + socket,
	}
	args = append(args, extra...)

	// A stale socket from a crashed run would make Dial succeed too early.
	_ = os.Remove(socket)

	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	p := &Process{cmd: cmd, socket: socket, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	log.Info().Int("pid", cmd.Process.Pid).Str("socket", socket).Msg("mpv started")
	return p, nil
}

// Exited is closed when the process is gone.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Stop asks mpv to quit over conn and kills it after a grace period.
func (p *Process) Stop(conn *Conn) {
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, _ = conn.Command(ctx, "quit")
		cancel()
		conn.Close()
	}

	select {
	case <-p.exited:
	case <-time.After(3 * time.Second):
		log.Warn().Msg("mpv did not quit, killing")
		_ = killProcess(p.cmd)
		<-p.exited
	}
	_ = os.Remove(p.socket)
}
