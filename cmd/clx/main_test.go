package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/clawxiv/internal/service"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CLAWXIV_API_KEY", "")
	return filepath.Join(dir, "clawxiv")
}

// run executes clx against srv and returns stdout.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func Test_cfgDir_And_keyPath(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(keyPath(), base) || !strings.HasSuffix(keyPath(), "api_key") {
		t.Fatalf("keyPath unexpected: %s", keyPath())
	}
}

func Test_key_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadKey(); err == nil {
		t.Fatalf("expected error when key file missing")
	}
	if err := saveKey("clx_abc\n"); err != nil {
		t.Fatalf("saveKey: %v", err)
	}
	got, err := loadKey()
	if err != nil || got != "clx_abc" {
		t.Fatalf("loadKey: %q %v", got, err)
	}
	st, err := os.Stat(keyPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	t.Setenv("CLAWXIV_API_KEY", "clx_env")
	got, _ = loadKey()
	assert.Equal(t, "clx_env", got)
}

func Test_readAll_File(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "main.tex")
	_ = os.WriteFile(tmp, []byte("hello"), 0o600)
	b, err := readAll(tmp)
	if err != nil || string(b) != "hello" {
		t.Fatalf("readAll(file): %q %v", b, err)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]any{"a": 1}))

	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatalf("printJSON should indent")
	}
}

func TestRegister_SavesKey(t *testing.T) {
	_ = withTmpConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/register", r.URL.Path)
		_, _ = w.Write([]byte(`{"bot_id":"b1","api_key":"clx_0123456789abcdef0123456789abcdef"}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "register", "--name", "lovelace")
	require.NoError(t, err)
	assert.Contains(t, out, "bot b1 registered")

	key, err := loadKey()
	require.NoError(t, err)
	assert.Equal(t, "clx_0123456789abcdef0123456789abcdef", key)
}

func TestSubmit_ReadsFiles(t *testing.T) {
	_ = withTmpConfig(t)
	require.NoError(t, saveKey("clx_k"))

	dir := t.TempDir()
	src := filepath.Join(dir, "main.tex")
	img := filepath.Join(dir, "fig.png")
	require.NoError(t, os.WriteFile(src, []byte(`\documentclass{article}`), 0o600))
	require.NoError(t, os.WriteFile(img, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	var got service.SubmitInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "clx_k", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"paper_id":"clawxiv.2602.00001","url":"u","pdf_url":"p"}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "submit",
		"--title", "On Agents", "--abstract", "A.", "--source", src,
		"--image", img, "--category", "cs.AI,cs.LG", "--author", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "clawxiv.2602.00001")

	assert.Equal(t, "On Agents", got.Title)
	assert.Equal(t, `\documentclass{article}`, got.Source)
	assert.Equal(t, []string{"cs.AI", "cs.LG"}, got.Categories)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), got.Images["fig.png"])
	require.Len(t, got.Authors, 1)
	assert.Equal(t, "Ada", got.Authors[0].Name)
}

func TestSubmit_RequiresKey(t *testing.T) {
	_ = withTmpConfig(t)
	src := filepath.Join(t.TempDir(), "main.tex")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, srv, "submit", "--title", "T", "--abstract", "A", "--source", src, "--category", "cs.AI")
	assert.ErrorContains(t, err, "clx register")
}

func TestSearch_PrintsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "agents", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"papers":[{"id":"clawxiv.2602.00001","title":"On Agents"}],"total":1,"page":1,"limit":25,"totalPages":1}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "search", "-q", "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "clawxiv.2602.00001  On Agents")
	assert.Contains(t, out, "page 1/1, 1 total")
}

func TestGet_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Paper not found"}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "get", "clawxiv.2602.00009")
	assert.ErrorContains(t, err, "Paper not found")
}

func TestPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.5"))
	}))
	defer srv.Close()

	old := stdoutIsTerminal
	t.Cleanup(func() { stdoutIsTerminal = old })

	stdoutIsTerminal = func() bool { return true }
	_, err := run(t, srv, "pdf", "clawxiv.2602.00001")
	assert.ErrorContains(t, err, "-o FILE")

	dst := filepath.Join(t.TempDir(), "p.pdf")
	_, err = run(t, srv, "pdf", "clawxiv.2602.00001", "-o", dst)
	require.NoError(t, err)
	b, _ := os.ReadFile(dst)
	assert.Equal(t, "%PDF-1.5", string(b))

	stdoutIsTerminal = func() bool { return false }
	out, err := run(t, srv, "pdf", "clawxiv.2602.00001")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.5", out)
}

func TestTemplate_WritesDir(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"source":"\\documentclass{article}","images":{"test.png":"` + png + `"}}`))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "tpl")
	_, err := run(t, srv, "template", "-d", dir)
	require.NoError(t, err)

	src, _ := os.ReadFile(filepath.Join(dir, "main.tex"))
	assert.Equal(t, `\documentclass{article}`, string(src))
	img, _ := os.ReadFile(filepath.Join(dir, "test.png"))
	assert.Equal(t, []byte{1, 2, 3}, img)
}
