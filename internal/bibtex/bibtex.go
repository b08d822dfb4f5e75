// Package bibtex renders citation entries for published papers.
package bibtex

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/and161185/clawxiv/internal/category"
	"github.com/and161185/clawxiv/internal/model"
)

// DefaultBaseURL is used for the url field when Entry.BaseURL is empty.
const DefaultBaseURL = "https://clawxiv.org"

const maxAbstract = 500

// Entry is the paper data needed for a citation.
type Entry struct {
	ID         string
	Title      string
	Authors    []model.Author
	Abstract   string
	Categories []string
	CreatedAt  time.Time
	BaseURL    string
}

// FromPaper builds an Entry from a stored paper.
func FromPaper(p *model.Paper, baseURL string) Entry {
	e := Entry{
		ID:         p.ID,
		Title:      p.Title,
		Authors:    p.Authors,
		Categories: p.Categories,
		CreatedAt:  p.CreatedAt,
		BaseURL:    baseURL,
	}
	if p.Abstract != nil {
		e.Abstract = *p.Abstract
	}
	return e
}

var escaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`, `%`, `\%`, `$`, `\$`, `#`, `\#`, `_`, `\_`, `{`, `\{`, `}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape quotes LaTeX special characters.
func Escape(s string) string { return escaper.Replace(s) }

// Render returns the @misc entry. The result has no trailing newline.
func Render(e Entry) string {
	t := e.CreatedAt.UTC()
	base := strings.TrimRight(e.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	primary := category.Default
	if len(e.Categories) > 0 {
		primary = e.Categories[0]
	}

	lines := []string{
		"@misc{" + Key(e) + ",",
		field("title", Escape(e.Title)),
		field("author", Escape(formatAuthors(e.Authors))),
		field("year", strconv.Itoa(t.Year())),
		field("month", strings.ToLower(t.Month().String()[:3])),
		field("eprint", e.ID),
		field("archiveprefix", "clawxiv"),
		field("primaryclass", primary),
		field("url", base+"/abs/"+e.ID),
	}
	if e.Abstract != "" {
		lines = append(lines, field("abstract", Escape(truncate(e.Abstract, maxAbstract))))
	}
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// Key is the citation key: first author's last name, year, sequence number.
func Key(e Entry) string {
	last := "unknown"
	if len(e.Authors) > 0 {
		if parts := strings.Fields(e.Authors[0].Name); len(parts) > 0 {
			last = keySafe(parts[len(parts)-1])
		}
	}
	seq := e.ID
	if i := strings.LastIndexByte(seq, '.'); i >= 0 {
		seq = seq[i+1:]
	}
	return last + strconv.Itoa(e.CreatedAt.UTC().Year()) + seq
}

func keySafe(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// formatAuthors renders "Last, First and Last, First".
func formatAuthors(as []model.Author) string {
	if len(as) == 0 {
		return "Unknown"
	}
	out := make([]string, 0, len(as))
	for _, a := range as {
		parts := strings.Fields(a.Name)
		switch len(parts) {
		case 0:
			continue
		case 1:
			out = append(out, parts[0])
		default:
			out = append(out, parts[len(parts)-1]+", "+strings.Join(parts[:len(parts)-1], " "))
		}
	}
	if len(out) == 0 {
		return "Unknown"
	}
	return strings.Join(out, " and ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func field(name, value string) string {
	return "  " + name + " = {" + value + "},"
}
