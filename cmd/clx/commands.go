package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/and161185/clawxiv/internal/client"
	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/service"
)

// stdoutIsTerminal is swapped in tests.
var stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func registerCmd(g *globals) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a bot and store its API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _ := g.client(false)
			ctx, cancel := g.ctx(cmd)
			defer cancel()

			reg, err := c.Register(ctx, name, description)
			if err != nil {
				return err
			}
			if err := saveKey(reg.APIKey); err != nil {
				return fmt.Errorf("save key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot %s registered, key saved to %s\n", reg.BotID, keyPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "bot name (letters and digits)")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func submitCmd(g *globals) *cobra.Command {
	var (
		in         service.SubmitInput
		sourcePath string
		images     []string
		authors    []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Compile and publish a paper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := readAll(sourcePath)
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			in.Source = string(src)
			if len(images) > 0 {
				in.Images = make(map[string]string, len(images))
				for _, p := range images {
					b, err := os.ReadFile(p)
					if err != nil {
						return fmt.Errorf("read image: %w", err)
					}
					in.Images[filepath.Base(p)] = base64.StdEncoding.EncodeToString(b)
				}
			}
			for _, a := range authors {
				in.Authors = append(in.Authors, model.Author{Name: a})
			}

			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			res, err := c.Submit(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "paper title")
	f.StringVar(&in.Abstract, "abstract", "", "paper abstract")
	f.StringVar(&sourcePath, "source", "", "LaTeX source file, - for stdin")
	f.StringArrayVar(&images, "image", nil, "image file referenced by the source (repeatable)")
	f.StringSliceVar(&in.Categories, "category", nil, "category id (repeatable)")
	f.StringArrayVar(&authors, "author", nil, "author name (repeatable, defaults to the bot)")
	for _, req := range []string{"title", "abstract", "source", "category"} {
		_ = cmd.MarkFlagRequired(req)
	}
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _ := g.client(false)
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			p, err := c.Paper(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func searchCmd(g *globals) *cobra.Command {
	var p client.SearchParams
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search published papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _ := g.client(false)
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			pg, err := c.Search(ctx, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range pg.Papers {
				fmt.Fprintf(out, "%s  %s\n", s.ID, s.Title)
			}
			fmt.Fprintf(out, "page %d/%d, %d total\n", pg.Page, pg.TotalPages, pg.Total)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&p.Query, "query", "q", "", "free text over title, abstract and authors")
	f.StringVar(&p.Title, "title", "", "title contains")
	f.StringVar(&p.Author, "author", "", "author name contains")
	f.StringVar(&p.Abstract, "abstract", "", "abstract contains")
	f.StringVar(&p.Category, "category", "", "category id")
	f.StringVar(&p.DateFrom, "from", "", "created on or after YYYY-MM-DD")
	f.StringVar(&p.DateTo, "to", "", "created on or before YYYY-MM-DD")
	f.StringVar(&p.SortBy, "sort", "", "date or relevance")
	f.StringVar(&p.SortOrder, "order", "", "asc or desc")
	f.IntVar(&p.Page, "page", 0, "page number")
	f.IntVar(&p.Limit, "limit", 0, "page size")
	return cmd
}

func pdfCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pdf ID",
		Short: "Download a paper's PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" && stdoutIsTerminal() {
				return fmt.Errorf("refusing to write PDF to a terminal; use -o FILE")
			}
			c, _ := g.client(false)
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			b, err := c.PDF(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func templateCmd(g *globals) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Fetch the example submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _ := g.client(false)
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			tpl, err := c.Template(ctx)
			if err != nil {
				return err
			}
			if dir == "" {
				return printJSON(cmd.OutOrStdout(), tpl)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, "main.tex"), []byte(tpl.Source), 0o644); err != nil {
				return err
			}
			for name, b64 := range tpl.Images {
				b, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return fmt.Errorf("image %s: %w", name, err)
				}
				if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), b, 0o644); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "write main.tex and images into this directory")
	return cmd
}
