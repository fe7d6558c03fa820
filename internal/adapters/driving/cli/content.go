package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/normalisers"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage stored content",
	Long:  `Register files and text entries, list them, and reset their processing status.`,
}

var contentAddFileCmd = &cobra.Command{
	Use:   "add-file [path]",
	Short: "Register a file on disk",
	Long: `Registers an existing file as a pending item. The file is not copied;
its path is recorded and read when the item is processed.`,
	Args: cobra.ExactArgs(1),
	RunE: runContentAddFile,
}

var contentAddTextCmd = &cobra.Command{
	Use:   "add-text [title]",
	Short: "Add a text entry",
	Long: `Adds a text entry as a pending item. The body comes from --body,
or from --file, or from stdin when neither is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runContentAddText,
}

var contentListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List items of a kind (file, text, document)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runContentList,
}

var contentGetCmd = &cobra.Command{
	Use:   "get [ref]",
	Short: "Show an item, e.g. text:12",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentGet,
}

var contentResetCmd = &cobra.Command{
	Use:   "reset [ref]",
	Short: "Drop an item's chunks and return it to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentReset,
}

var contentForceCmd = &cobra.Command{
	Use:   "force [ref] [status]",
	Short: "Set any status, bypassing the state machine",
	Args:  cobra.ExactArgs(2),
	RunE:  runContentForce,
}

var contentImportCmd = &cobra.Command{
	Use:   "import [manifest.yaml]",
	Short: "Register files and texts listed in a YAML manifest",
	Long: `Reads a manifest of the form:

  files:
    - path: ./notes/roadmap.md
  texts:
    - title: Standup
      content: Shipped the parser.
    - title: Handbook
      content_type: document
      content: ...

Relative file paths are resolved against the manifest's directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runContentImport,
}

var (
	textBody     string
	textBodyFile string
	textKind     string
)

func init() {
	contentAddTextCmd.Flags().StringVarP(&textBody, "body", "b", "", "entry body")
	contentAddTextCmd.Flags().StringVarP(&textBodyFile, "file", "f", "", "read the body from a file")
	contentAddTextCmd.Flags().StringVarP(&textKind, "kind", "k", string(domain.KindText), "text or document")

	contentCmd.AddCommand(contentAddFileCmd)
	contentCmd.AddCommand(contentAddTextCmd)
	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentGetCmd)
	contentCmd.AddCommand(contentResetCmd)
	contentCmd.AddCommand(contentForceCmd)
	contentCmd.AddCommand(contentImportCmd)
	rootCmd.AddCommand(contentCmd)
}

var errNoContentService = errors.New("content service not configured")

// newFileFromPath describes a regular file on disk.
func newFileFromPath(path string) (domain.NewFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.NewFile{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return domain.NewFile{}, err
	}
	if !info.Mode().IsRegular() {
		return domain.NewFile{}, fmt.Errorf("%s is not a regular file", path)
	}
	base := filepath.Base(abs)
	return domain.NewFile{
		Filename:     uuid.NewString() + strings.ToLower(filepath.Ext(base)),
		OriginalName: base,
		Size:         info.Size(),
		MIMEType:     normalisers.MIMETypeFor(base),
		StoragePath:  abs,
	}, nil
}

func runContentAddFile(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	input, err := newFileFromPath(args[0])
	if err != nil {
		return err
	}
	item, err := contentService.CreateFile(commandContext(cmd), input)
	if err != nil {
		return fmt.Errorf("failed to add file: %w", err)
	}

	cmd.Printf("Added %s (%s, %d bytes)\n", item.Ref(), input.MIMEType, input.Size)
	return nil
}

func runContentAddText(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	kind, err := domain.ParseContentKind(textKind)
	if err != nil {
		return err
	}

	body := textBody
	switch {
	case body != "":
	case textBodyFile != "":
		data, err := os.ReadFile(textBodyFile)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		body = string(data)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		body = string(data)
	}

	ctx := commandContext(cmd)
	if dups, err := contentService.FindDuplicates(ctx, body); err == nil && len(dups) > 0 {
		cmd.Printf("Note: same body as %s\n", dups[0].Ref())
	}

	item, err := contentService.CreateText(ctx, domain.NewText{Title: args[0], Body: body, Kind: kind})
	if err != nil {
		return fmt.Errorf("failed to add text: %w", err)
	}

	cmd.Printf("Added %s\n", item.Ref())
	return nil
}

func runContentList(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	kinds := []domain.ContentKind{domain.KindFile, domain.KindText, domain.KindDocument}
	if len(args) == 1 {
		kind, err := domain.ParseContentKind(args[0])
		if err != nil {
			return err
		}
		kinds = []domain.ContentKind{kind}
	}

	ctx := commandContext(cmd)
	total := 0
	for _, kind := range kinds {
		items, err := contentService.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to list %s items: %w", kind, err)
		}
		for i := range items {
			// Text listings include documents; show each item under its own kind.
			if items[i].Kind != kind {
				continue
			}
			cmd.Printf("  %-14s %-10s %s  %s\n",
				items[i].Ref(), items[i].Status,
				items[i].CreatedAt.Local().Format("2006-01-02 15:04"),
				items[i].DisplayName())
			total++
		}
	}

	if total == 0 {
		cmd.Println("No content found.")
		return nil
	}
	cmd.Printf("\nTotal: %d items\n", total)
	return nil
}

func runContentGet(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}
	item, err := contentService.Get(commandContext(cmd), ref)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", ref, err)
	}

	cmd.Printf("%s\n\n", item.Ref())
	cmd.Printf("  Name:     %s\n", item.DisplayName())
	cmd.Printf("  Status:   %s\n", item.Status)
	cmd.Printf("  Created:  %s\n", item.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", item.UpdatedAt.Format("2006-01-02 15:04:05"))
	if f := item.File; f != nil {
		cmd.Printf("  Stored:   %s\n", f.Filename)
		cmd.Printf("  MIME:     %s\n", f.MIMEType)
		cmd.Printf("  Size:     %d bytes\n", f.Size)
		cmd.Printf("  Path:     %s\n", f.StoragePath)
	}
	if t := item.Text; t != nil {
		cmd.Printf("  Hash:     %s\n", t.ContentHash)
		cmd.Printf("\n%s\n", t.Body)
	}
	return nil
}

func runContentReset(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}
	if _, err := contentService.ResetToPending(commandContext(cmd), ref); err != nil {
		return fmt.Errorf("failed to reset %s: %w", ref, err)
	}

	cmd.Printf("%s reset to pending\n", ref)
	return nil
}

func runContentForce(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}
	status := domain.ProcessingStatus(args[1])
	item, err := contentService.ForceStatus(commandContext(cmd), ref, status)
	if err != nil {
		return fmt.Errorf("failed to force %s: %w", ref, err)
	}

	cmd.Printf("%s forced to %s\n", ref, item.Status)
	return nil
}

// importManifest lists content to register in one go.
type importManifest struct {
	Files []struct {
		Path string `yaml:"path"`
	} `yaml:"files"`
	Texts []domain.NewText `yaml:"texts"`
}

func runContentImport(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var manifest importManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	ctx := commandContext(cmd)
	dir := filepath.Dir(args[0])
	added, failed := 0, 0

	for _, f := range manifest.Files {
		path := f.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		input, err := newFileFromPath(path)
		if err == nil {
			var item *domain.ContentItem
			if item, err = contentService.CreateFile(ctx, input); err == nil {
				cmd.Printf("  + %s %s\n", item.Ref(), input.OriginalName)
				added++
				continue
			}
		}
		cmd.Printf("  ! %s: %v\n", f.Path, err)
		failed++
	}

	for _, t := range manifest.Texts {
		item, err := contentService.CreateText(ctx, t)
		if err != nil {
			cmd.Printf("  ! %q: %v\n", t.Title, err)
			failed++
			continue
		}
		cmd.Printf("  + %s %s\n", item.Ref(), t.Title)
		added++
	}

	cmd.Printf("\nImported %d items, %d failed\n", added, failed)
	if failed > 0 {
		return fmt.Errorf("%d manifest entries failed", failed)
	}
	return nil
}
