// Package main provides replicactl, an operator tool for the rebuttal drafting
// functions: inspect the section catalog, dry-run the classifier and validator
// on local files, and list unfinished sessions.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/classifier"
	"github.com/Lllllllleong/legaldraftflow/internal/facts"
	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/services"
	"github.com/Lllllllleong/legaldraftflow/internal/validator"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var catalogFile string

	cmd := &cobra.Command{
		Use:           "replicactl",
		Short:         "Operator tool for the rebuttal drafting workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))
		},
	}
	cmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "YAML catalog file (default: built-in rebuttal catalog)")

	loadCatalog := func() (*catalog.Catalog, error) {
		if catalogFile == "" {
			return catalog.Replica(), nil
		}
		return catalog.LoadFile(catalogFile)
	}

	cmd.AddCommand(catalogCmd(loadCatalog), classifyCmd(), validateCmd(loadCatalog), sessionsCmd())
	return cmd
}

func catalogCmd(load func() (*catalog.Catalog, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the section catalog in generation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tTITLE\tTOKENS")
			for i, s := range cat.Sections() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d-%d\n", i+1, s.ID, s.Title, s.MinTokens, s.MaxTokens)
			}
			return tw.Flush()
		},
	}
}

func readDocuments(paths []string) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, models.Document{Name: filepath.Base(p), Content: string(data), FileType: "text/plain"})
	}
	return docs, nil
}

func classifyCmd() *cobra.Command {
	var showFacts bool

	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Tag text files with document roles",
		Args:  cobra.RangeArgs(1, models.MaxDocuments),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args)
			if err != nil {
				return err
			}
			res := classifier.Classify(docs)
			out := cmd.OutOrStdout()
			for _, d := range res.Documents {
				fmt.Fprintf(out, "%s\t%s\n", d.Name, classifier.Describe(d.RoleTags))
			}
			if !res.HasRebuttalTarget {
				fmt.Fprintln(out, "sem contestação identificada")
			}
			if showFacts {
				if summary := facts.Extract(res.Documents); !summary.IsEmpty() {
					fmt.Fprintln(out)
					fmt.Fprint(out, summary.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFacts, "facts", false, "Also print extracted facts")
	return cmd
}

func validateCmd(load func() (*catalog.Catalog, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate SECTION_ID FILE",
		Short: "Run the section validator on a text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			section, ok := cat.At(cat.IndexOf(args[0]))
			if !ok {
				return fmt.Errorf("unknown section %q", args[0])
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			text := string(data)
			res := validator.Validate(strings.TrimSpace(text), section)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "section: %s (~%d tokens)\n", section.ID, validator.ApproxTokens(text))
			printList(out, "error", res.Errors)
			printList(out, "warning", res.Warnings)
			if !res.OK {
				return fmt.Errorf("validation failed with %d error(s)", len(res.Errors))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func printList(w io.Writer, label string, items []string) {
	for _, it := range items {
		fmt.Fprintf(w, "%s: %s\n", label, it)
	}
}

func sessionsCmd() *cobra.Command {
	var (
		projectID  string
		collection string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions that have not completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := gcp.NewFirestoreClient(ctx, projectID)
			if err != nil {
				return err
			}
			defer client.Close()
			store, err := services.NewFirestoreStore(client, collection)
			if err != nil {
				return err
			}
			active, err := store.ListActive(ctx)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), active)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", gcp.GetEnv("PROJECT_ID", ""), "GCP project ID")
	cmd.Flags().StringVar(&collection, "collection", gcp.GetEnv("SESSIONS_COLLECTION", "replicaSessions"), "Firestore collection")
	return cmd
}

func printSessions(w io.Writer, sessions []models.WorkflowState) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPHASE\tSECTION\tDOCUMENTS\tUPDATED")
	for _, st := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", st.SessionID, st.Phase, st.CurrentSectionIndex, len(st.Documents), st.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
