package shell

import (
	"errors"
	"io"
	"math"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// Process represents a running command.
type Process interface {
	Wait() error
	Resize(rows, cols int) error
}

type ptyProcess struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	ioDone <-chan struct{}
}

func (p *ptyProcess) Wait() error {
	err := p.cmd.Wait()
	<-p.ioDone
	return err
}

func (p *ptyProcess) Resize(rows, cols int) error {
	if rows > math.MaxUint16 || cols > math.MaxUint16 || rows < 0 || cols < 0 {
		return errors.New("terminal size out of bounds")
	}

	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

type pipeProcess struct {
	cmd *exec.Cmd
}

func (p *pipeProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *pipeProcess) Resize(_, _ int) error {
	return nil
}

// terminalFile returns w as a file when it is attached to a terminal.
func terminalFile(w io.Writer) (*os.File, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		return nil, false
	}
	return f, true
}

// start launches cmd in a PTY when stdout is a terminal and with plain pipes otherwise.
func start(cmd *exec.Cmd, stdout, stderr io.Writer) (Process, error) {
	tty, ok := terminalFile(stdout)
	if !ok {
		return startPiped(cmd, stdout, stderr)
	}

	size, err := pty.GetsizeFull(tty)
	if err != nil {
		size = nil
	}

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to start pty")
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = ptmx.Close() }()
		// The PTY merges stderr into stdout.
		_, _ = io.Copy(stdout, ptmx)
	}()

	return &ptyProcess{cmd: cmd, ptmx: ptmx, ioDone: ioDone}, nil
}

func startPiped(cmd *exec.Cmd, stdout, stderr io.Writer) (Process, error) {
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pipeProcess{cmd: cmd}, nil
}
