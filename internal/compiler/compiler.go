// Package compiler is the gateway to the external LaTeX-to-PDF service.
//
// The service answers in one of three shapes: a raw PDF body, a JSON envelope
// carrying a base64 PDF, or a JSON envelope carrying an error. All of them,
// plus transport failures, are folded into a single Result value.
package compiler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// DefaultMainFile is the entry file name used by the submission pipeline.
const DefaultMainFile = "main.tex"

// maxResponseBytes bounds how much of a compiler response is read into memory.
const maxResponseBytes = 64 << 20

// File is one input file. Binary files are sent base64-encoded.
type File struct {
	Content []byte
	Binary  bool
}

// Text builds a text file.
func Text(s string) File { return File{Content: []byte(s)} }

// Blob builds a binary file.
func Blob(b []byte) File { return File{Content: b, Binary: true} }

// Result is the outcome of one compile call: either Success or Failure.
type Result interface{ isResult() }

// Success carries the rendered document.
type Success struct{ Document []byte }

// Failure carries a best-effort diagnostic.
type Failure struct{ Message string }

func (Success) isResult() {}
func (Failure) isResult() {}

// Compiler renders a set of files into a PDF.
type Compiler interface {
	Compile(ctx context.Context, files map[string]File, mainFile string) Result
}

// Client talks to the compiler over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// New returns a Client posting to url. A nil hc means http.DefaultClient.
func New(url string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{url: url, http: hc}
}

type request struct {
	Files    map[string]any `json:"files"`
	MainFile string         `json:"mainFile"`
}

type binaryFile struct {
	Base64 string `json:"base64"`
}

type envelope struct {
	Error string `json:"error"`
	PDF   string `json:"pdf"`
}

// Compile posts files to the service. It never returns an error: every
// problem on the way is reported as a Failure.
func (c *Client) Compile(ctx context.Context, files map[string]File, mainFile string) Result {
	body, err := encodeRequest(files, mainFile)
	if err != nil {
		return Failure{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Failure{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Failure{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Failure{Message: fmt.Sprintf("read response: %v", err)}
	}
	return decodeResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
}

func encodeRequest(files map[string]File, mainFile string) ([]byte, error) {
	if _, ok := files[mainFile]; !ok {
		return nil, fmt.Errorf("main file %q missing from file set", mainFile)
	}
	out := request{Files: make(map[string]any, len(files)), MainFile: mainFile}
	for name, f := range files {
		if f.Binary || !utf8.Valid(f.Content) {
			out.Files[name] = binaryFile{Base64: base64.StdEncoding.EncodeToString(f.Content)}
			continue
		}
		out.Files[name] = string(f.Content)
	}
	return json.Marshal(out)
}

// decodeResponse folds every response shape into a Result.
func decodeResponse(status int, contentType string, body []byte) Result {
	if status < 200 || status > 299 {
		return Failure{Message: fmt.Sprintf("Compiler returned %d: %s", status, strings.TrimSpace(string(body)))}
	}

	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "application/json" {
		if len(body) == 0 {
			return Failure{Message: "Compiler returned an empty document"}
		}
		return Success{Document: body}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Failure{Message: fmt.Sprintf("Malformed JSON response from compiler: %v", err)}
	}
	switch {
	case env.Error != "":
		return Failure{Message: env.Error}
	case env.PDF != "":
		doc, err := base64.StdEncoding.DecodeString(env.PDF)
		if err != nil {
			return Failure{Message: fmt.Sprintf("Invalid base64 PDF from compiler: %v", err)}
		}
		return Success{Document: doc}
	default:
		return Failure{Message: "Unexpected JSON response from compiler"}
	}
}
