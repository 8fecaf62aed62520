// Package identity recovers the display name of this client, or asks for one.
package identity

import (
	"chat-sync/domain"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const prompt = "Enter your username: "

// FileProvider keeps the chosen name in a small session file.
// The prompt only runs when no name was saved and the input is interactive.
type FileProvider struct {
	path        string
	in          io.Reader
	out         io.Writer
	interactive bool
	log         *slog.Logger
}

func NewFileProvider(path string, in io.Reader, out io.Writer, interactive bool, log *slog.Logger) *FileProvider {
	return &FileProvider{path: path, in: in, out: out, interactive: interactive, log: log}
}

// NewTerminalProvider prompts on stdin when it is a terminal.
func NewTerminalProvider(path string, log *slog.Logger) *FileProvider {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return NewFileProvider(path, os.Stdin, os.Stdout, interactive, log)
}

func (p *FileProvider) GetOrPromptUsername() (domain.Identity, error) {
	saved, err := p.load()
	if err != nil {
		return "", err
	}
	if saved != "" {
		p.log.Debug("Identity recovered", "identity", saved, "path", p.path)
		return domain.NewIdentity(saved), nil
	}
	if !p.interactive {
		p.log.Debug("No terminal to prompt, using fallback identity")
		return domain.GuestIdentity, nil
	}

	if _, err = fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := readLine(p.in)
	if err != nil {
		return "", fmt.Errorf("reading username: %w", err)
	}
	identity := domain.NewIdentity(line)
	if err = p.save(identity); err != nil {
		p.log.Warn("Identity not saved", "path", p.path, "error", err)
	}
	return identity, nil
}

func (p *FileProvider) load() (string, error) {
	if p.path == "" {
		return "", nil
	}
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading identity file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func (p *FileProvider) save(identity domain.Identity) error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(identity.String()+"\n"), fs.FileMode(0o600))
}

// readLine reads up to a newline without buffering past it,
// the rest of the input belongs to the chat input worker.
func readLine(in io.Reader) (string, error) {
	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return line.String(), nil
			}
			line.WriteByte(buf[0])
		}
		if err == io.EOF {
			return line.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}
