package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "skip the confirmation prompt",
	}
}

// confirm asks a yes/no question on the root reader. Non-interactive input
// is refused unless --yes was given.
func confirm(cmd *cli.Command, question string) (bool, error) {
	if cmd.Bool("yes") {
		return true, nil
	}

	root := cmd.Root()
	if _, ok := terminalFd(root.Reader); !ok {
		return false, errors.New("refusing to delete without confirmation on non-interactive input, pass --yes")
	}

	_, _ = fmt.Fprintf(root.ErrWriter, "%s [y/N] ", question)
	line, err := readLine(root.Reader)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readSecret reads a single line, without echo when the input is a terminal.
func readSecret(cmd *cli.Command, prompt string) (string, error) {
	root := cmd.Root()

	fd, ok := terminalFd(root.Reader)
	if !ok {
		return readLine(root.Reader)
	}

	_, _ = fmt.Fprint(root.ErrWriter, prompt)
	secret, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(root.ErrWriter)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// openBrowser opens url in the user's default browser.
var openBrowser = func(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
