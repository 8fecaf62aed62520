package identity

import (
	"bytes"
	"chat-sync/domain"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrPromptUsername_Recovers_Saved_Name(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "identity")
	req.NoError(os.WriteFile(path, []byte("  Alice \n"), 0o600))
	out := &bytes.Buffer{}

	// Given a saved name, the prompt must never be shown
	provider := NewFileProvider(path, strings.NewReader("Bob\n"), out, true, slog.Default())

	identity, err := provider.GetOrPromptUsername()

	req.NoError(err)
	req.Equal(domain.Identity("Alice"), identity)
	req.Empty(out.String())
}

func TestGetOrPromptUsername_Prompts_And_Saves(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "nested", "identity")
	out := &bytes.Buffer{}
	in := strings.NewReader("Bob\nfirst chat line\n")
	provider := NewFileProvider(path, in, out, true, slog.Default())

	// When no name was saved
	identity, err := provider.GetOrPromptUsername()

	// Then the user is asked once and the answer persisted
	req.NoError(err)
	req.Equal(domain.Identity("Bob"), identity)
	req.Equal(prompt, out.String())
	content, err := os.ReadFile(path)
	req.NoError(err)
	req.Equal("Bob\n", string(content))

	// And the following input is left untouched
	rest := make([]byte, 64)
	n, _ := in.Read(rest)
	req.Equal("first chat line\n", string(rest[:n]))
}

func TestGetOrPromptUsername_Empty_Answer_Falls_Back_To_Guest(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "identity")
	provider := NewFileProvider(path, strings.NewReader("   \n"), &bytes.Buffer{}, true, slog.Default())

	identity, err := provider.GetOrPromptUsername()

	req.NoError(err)
	req.Equal(domain.GuestIdentity, identity)
}

func TestGetOrPromptUsername_Not_Interactive(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "identity")
	out := &bytes.Buffer{}
	provider := NewFileProvider(path, strings.NewReader("Bob\n"), out, false, slog.Default())

	identity, err := provider.GetOrPromptUsername()

	req.NoError(err)
	req.Equal(domain.GuestIdentity, identity)
	req.Empty(out.String())
	_, err = os.Stat(path)
	req.True(os.IsNotExist(err))
}

func TestGetOrPromptUsername_Without_File(t *testing.T) {
	req := require.New(t)
	provider := NewFileProvider("", strings.NewReader("Clara"), &bytes.Buffer{}, true, slog.Default())

	identity, err := provider.GetOrPromptUsername()

	req.NoError(err)
	req.Equal(domain.Identity("Clara"), identity)
}
