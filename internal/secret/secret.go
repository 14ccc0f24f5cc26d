// Package secret supplies the backup password without baking credential
// handling into the engine.
package secret

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/tmartens/keepsake/internal/errors"
)

// EnvVar is the environment variable consulted before prompting.
const EnvVar = "KEEPSAKE_PASSWORD"

// Provider yields the password used to encrypt and decrypt archives.
type Provider interface {
	Password() (string, error)
}

// Static returns a fixed password. Used in tests and when the password comes
// from configuration.
type Static string

func (s Static) Password() (string, error) {
	if s == "" {
		return "", errors.Configuration("encryption password is empty")
	}
	return string(s), nil
}

// Env reads the password from EnvVar.
type Env struct{}

func (Env) Password() (string, error) {
	pw := os.Getenv(EnvVar)
	if pw == "" {
		return "", errors.Configuration("environment variable %s is not set", EnvVar)
	}
	return pw, nil
}

// Terminal prompts on the controlling terminal with echo disabled.
type Terminal struct {
	Prompt string
}

func (t Terminal) Password() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", errors.Configuration("no terminal available to prompt for the password; set %s", EnvVar)
	}
	prompt := t.Prompt
	if prompt == "" {
		prompt = "Password: "
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pw) == 0 {
		return "", errors.Configuration("empty password")
	}
	return string(pw), nil
}

// Default checks the environment first and falls back to a terminal prompt.
func Default() Provider {
	if os.Getenv(EnvVar) != "" {
		return Env{}
	}
	return Terminal{}
}
