package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/client"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/spf13/cobra"
)

// DefaultImportPattern matches the document types the importer understands
const DefaultImportPattern = "**/*.{md,markdown,txt,html,htm}"

type importOptions struct {
	url            string
	pattern        string
	provider       string
	username       string
	password       string
	parent         string
	filenameTitles bool
	dryRun         bool
	timeout        time.Duration
}

func newImportCmd() *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory of notes into a running server",
		Long: `Walks dir for documents matching --pattern and uploads each one as a
page. Headings, lists, checklists and code fences become blocks.

The password may also be given in STUDYDESK_PASSWORD.`,
		Example: `
server import ./notes --username ada
server import ./lectures --pattern "**/*.html" --parent pg_01H... --username ada
server import ./notes --dry-run
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "http://localhost:8000", "server base URL")
	flags.StringVar(&opts.pattern, "pattern", DefaultImportPattern, "glob, relative to dir, of files to import")
	flags.StringVar(&opts.provider, "provider", "local", "auth provider")
	flags.StringVar(&opts.username, "username", "", "account name")
	flags.StringVar(&opts.password, "password", "", "account password")
	flags.StringVar(&opts.parent, "parent", "", "page id to import under")
	flags.BoolVar(&opts.filenameTitles, "filename-titles", false, "title pages after their file name")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list the files without uploading")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	return cmd
}

func runImport(cmd *cobra.Command, dir string, opts *importOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	files, err := findDocuments(ctx, dir, opts.pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "no files match %q under %s\n", opts.pattern, dir)
		return nil
	}
	if opts.dryRun {
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		fmt.Fprintf(out, "%d files\n", len(files))
		return nil
	}

	password := opts.password
	if password == "" {
		password = os.Getenv("STUDYDESK_PASSWORD")
	}
	c := client.New(opts.url, opts.timeout)
	if _, err := c.Login(ctx, types.LoginRequest{
		Provider: opts.provider,
		Username: opts.username,
		Password: password,
	}); err != nil {
		return err
	}
	defer c.Logout(context.Background())

	var failed int
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		title := ""
		if opts.filenameTitles {
			title = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		}

		page, blocks, err := c.Import(ctx, data, title, opts.parent)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", rel, err)
			continue
		}
		fmt.Fprintf(out, "%s -> %s %q (%d blocks)\n", rel, page.ID, page.Title, blocks)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	fmt.Fprintf(out, "imported %d files\n", len(files))
	return nil
}

// findDocuments returns the slash-separated paths under root that match
// pattern, sorted
func findDocuments(ctx context.Context, root, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var (
		mu      sync.Mutex
		matches []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); ok {
			mu.Lock()
			matches = append(matches, rel)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(matches)
	return matches, nil
}
