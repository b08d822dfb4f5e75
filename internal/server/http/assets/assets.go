// Package assets embeds the example submission served by the template endpoint.
package assets

import (
	"embed"
	"encoding/base64"
)

//go:embed template.tex test.png
var files embed.FS

// Template is an example submission: LaTeX source plus base64 images.
type Template struct {
	Source string            `json:"source"`
	Images map[string]string `json:"images"`
}

// LoadTemplate reads the embedded example.
func LoadTemplate() (Template, error) {
	src, err := files.ReadFile("template.tex")
	if err != nil {
		return Template{}, err
	}
	img, err := files.ReadFile("test.png")
	if err != nil {
		return Template{}, err
	}
	return Template{
		Source: string(src),
		Images: map[string]string{"test.png": base64.StdEncoding.EncodeToString(img)},
	}, nil
}
