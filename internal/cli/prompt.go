package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/http"
)

// EnvProxyPassword supplies the proxy password without a prompt.
const EnvProxyPassword = "TRYON_PROXY_PASSWORD"

// promptProxyPassword fills cfg.ProxyPassword when the proxy mode needs one.
// The password comes from EnvProxyPassword or, on a terminal, a hidden
// prompt. It is never written back to the config file.
func promptProxyPassword(cfg *config.Config) error {
	if !http.NeedsProxyPassword(cfg) {
		return nil
	}
	if v := os.Getenv(EnvProxyPassword); v != "" {
		cfg.ProxyPassword = v
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("proxy user %q needs a password: set %s", cfg.ProxyUser, EnvProxyPassword)
	}

	fmt.Fprintf(os.Stderr, "Proxy password for %s: ", cfg.ProxyUser)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read proxy password: %w", err)
	}
	cfg.ProxyPassword = string(password)
	return nil
}

// promptLine prints label with def in brackets and returns the trimmed
// answer, or def when the answer is empty.
func promptLine(reader *bufio.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// promptYesNo asks a y/N question; anything but y or yes is no.
func promptYesNo(reader *bufio.Reader, out io.Writer, label string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", label)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
