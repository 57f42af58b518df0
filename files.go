package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verbi-app/verbi/internal/library"
)

// lsEntry is the JSON schema for one `ls --json` entry.
type lsEntry struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	Path    string `json:"path"`
	Preview string `json:"preview,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the library and cache document previews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			entries, err := cc.App().Library.LoadDocuments(cmd.Context())
			if err != nil {
				return err
			}

			return printEntries(cc, entries)
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Add a PDF to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			if info.IsDir() {
				return fmt.Errorf("%s is a directory", args[0])
			}

			entries, err := cc.App().Library.UploadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cc.Statusf("Uploaded %s (%s)\n", library.Title(args[0]), formatSize(info.Size()))

			return printEntries(cc, entries)
		},
	}
}

func newGetCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "get <id> <title>",
		Short: "Download a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}

			local, err := cc.App().Document.LoadDocument(cmd.Context(), id, args[1], outDir)
			if err != nil {
				return err
			}

			if info, err := os.Stat(local); err == nil {
				cc.Statusf("Downloaded %s (%s)\n", args[1], formatSize(info.Size()))
			}

			fmt.Fprintln(cc.Out, local)

			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to save into")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a document from the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}

			msg, err := cc.App().Library.DeleteDocument(cmd.Context(), id)
			if err != nil {
				return err
			}

			cc.Statusf("%s\n", msg)

			return nil
		},
	}
}

func parseDocumentID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}

	return id, nil
}

func printEntries(cc *CLIContext, entries []library.Entry) error {
	if cc.Flags.JSON {
		out := make([]lsEntry, 0, len(entries))
		for _, e := range entries {
			le := lsEntry{ID: e.ID, Title: e.Title, Path: e.Path, Preview: e.PreviewPath}
			if e.PreviewErr != nil {
				le.Error = e.PreviewErr.Error()
			}

			out = append(out, le)
		}

		return printJSON(cc.Out, out)
	}

	if len(entries) == 0 {
		cc.Statusf("Library is empty. Add a document with 'verbi upload <file>'.\n")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		preview := e.PreviewPath
		if e.PreviewErr != nil {
			preview = "(preview unavailable)"
		}

		rows = append(rows, []string{strconv.FormatUint(e.ID, 10), e.Title, preview})
	}

	printTable(cc.Out, []string{"ID", "TITLE", "PREVIEW"}, rows)

	return nil
}
