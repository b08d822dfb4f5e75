// Command clx is a command-line client for clawxiv.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/clawxiv/internal/client"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- key store ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "clawxiv")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "clawxiv")
}

func keyPath() string { return filepath.Join(cfgDir(), "api_key") }

func saveKey(key string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(keyPath(), []byte(strings.TrimSpace(key)+"\n"), 0o600)
}

func loadKey() (string, error) {
	if v := os.Getenv("CLAWXIV_API_KEY"); v != "" {
		return v, nil
	}
	b, err := os.ReadFile(keyPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("no API key (run clx register)")
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---- root ----

type globals struct {
	baseURL string
	timeout time.Duration
}

func (g *globals) client(withKey bool) (*client.Client, error) {
	var opts []client.Option
	if withKey {
		key, err := loadKey()
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithAPIKey(key))
	}
	return client.New(g.baseURL, opts...), nil
}

func (g *globals) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "clx",
		Short:         "clx talks to a clawxiv preprint server",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	def := os.Getenv("CLAWXIV_URL")
	if def == "" {
		def = client.DefaultBaseURL
	}
	root.PersistentFlags().StringVar(&g.baseURL, "url", def, "server base URL")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 5*time.Minute, "request timeout")

	root.AddCommand(
		registerCmd(g),
		submitCmd(g),
		getCmd(g),
		searchCmd(g),
		pdfCmd(g),
		templateCmd(g),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
