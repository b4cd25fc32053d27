// Command harvester works with archives offline: it normalizes exported
// documents into any export format and renders the in-browser capture script.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pauljones0/harvester/internal/export"
	"github.com/pauljones0/harvester/internal/ingest"
	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/normalizer"
	"github.com/pauljones0/harvester/internal/scriptgen"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "harvester",
		Short:        "Normalize post archives and generate capture scripts",
		SilenceUsage: true,
	}
	root.AddCommand(newNormalizeCmd(), newScriptCmd())
	return root
}

func newNormalizeCmd() *cobra.Command {
	var (
		paste  bool
		format string
		ids    string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Convert an exported archive into canonical posts",
		Long: "Reads a JSON export, archive .js file or pasted script output and writes\n" +
			"the normalized posts as json, md or csv. Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			idGen, err := normalizer.ParseIDMode(ids)
			if err != nil {
				return err
			}

			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			n := normalizer.New(normalizer.WithIDGenerator(idGen))
			source := filepath.Base(args[0])

			var posts []models.Post
			if paste || strings.EqualFold(filepath.Ext(args[0]), ".js") {
				posts, err = n.NormalizePaste(source, string(data))
			} else {
				posts, err = n.NormalizeJSON(source, data)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Normalized %d posts from %s\n", len(posts), source)
			return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return export.Write(w, f, posts)
			})
		},
	}
	cmd.Flags().BoolVar(&paste, "paste", false, "treat the input as pasted script output")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "output format: json, md or csv")
	cmd.Flags().StringVar(&ids, "ids", normalizer.IDModeRandom, "synthetic id mode for posts without ids: random or content")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newScriptCmd() *cobra.Command {
	var (
		count     int
		selectors string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Render the browser capture script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := scriptgen.DefaultSelectors()
			if selectors != "" {
				loaded, err := scriptgen.LoadSelectors(selectors)
				if err != nil {
					return fmt.Errorf("loading selectors: %w", err)
				}
				cfg = loaded
			}

			script, err := scriptgen.New(cfg).Generate(count)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := io.WriteString(w, script)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "number of posts to capture")
	cmd.Flags().StringVar(&selectors, "selectors", "", "selector config file (defaults to the built-in selectors)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, ingest.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(data) > ingest.MaxFileSize {
		return nil, ingest.ErrFileTooLarge
	}
	return data, nil
}

func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
