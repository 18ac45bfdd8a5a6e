package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"language-toolkit/internal/client"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/tui"
	"language-toolkit/models"
)

const watchInterval = 500 * time.Millisecond

func apiClient(cfg *models.Config) *client.APIClient {
	return client.NewAPIClient(cfg.ServerURL, cfg.APIToken)
}

func newSubmitCmd(getConfig func() *models.Config) *cobra.Command {
	var (
		req   client.SubmitRequest
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "submit <kind> [files...]",
		Short: "Submit a task",
		Long: `Submit a task of the given kind. Kinds: ` + kindList() + `.
Files are uploaded; text is passed with --text.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			kind := models.OperationKind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown kind %q (expected one of %s)", args[0], kindList())
			}

			c := apiClient(cfg)
			var (
				id  string
				err error
			)
			if files := args[1:]; len(files) > 0 {
				id, err = c.SubmitFiles(cmd.Context(), kind, req, files)
			} else {
				id, err = c.Submit(cmd.Context(), kind, req)
			}
			if err != nil {
				return err
			}
			fmt.Println(id)
			if watch {
				return runWatch(cmd.Context(), cfg, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.SourceLang, "source", "", "Source language code (default: auto-detect)")
	cmd.Flags().StringSliceVarP(&req.TargetLangs, "target", "t", nil, "Target language codes (repeat or comma-separate)")
	cmd.Flags().StringVar(&req.Text, "text", "", "Inline text input")
	cmd.Flags().StringVar(&req.Voice, "voice", "", "Voice id for speech synthesis")
	cmd.Flags().StringVarP(&req.OutputFormat, "format", "f", "", "Output format (transcribe: txt|srt, convert: pdf|png|docx|odt|html|txt)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the task until it finishes")
	return cmd
}

func kindList() string {
	names := make([]string, len(models.OperationKinds))
	for i, k := range models.OperationKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newStatusCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show a task's status and messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := apiClient(getConfig()).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(task)
			return nil
		},
	}
}

func printTask(t *models.Task) {
	fmt.Printf("%s %s  %s  %s  %d%%\n", t.Status.Icon(), t.ID, t.Kind, t.Status, t.Progress)
	for _, m := range t.Messages {
		fmt.Printf("  [%s] %s\n", m.Time.Format("15:04:05"), m.Text)
	}
	if t.Error != nil {
		fmt.Printf("  error: %s: %s\n", t.Error.Kind, t.Error.Message)
	}
	for i, f := range t.ResultFiles {
		fmt.Printf("  result %d: %s\n", i, filepath.Base(f))
	}
}

func newListCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := apiClient(getConfig()).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tPROGRESS\tFILES\tCREATED")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%d%%\t%d\t%s\n",
					s.ID, s.Kind, s.Status.Icon(), s.Status, s.Progress, s.ResultCount, s.CreatedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newWatchCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a task live until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), getConfig(), args[0])
		},
	}
}

func runWatch(ctx context.Context, cfg *models.Config, id string) error {
	// Log lines would tear the terminal UI.
	if closer, err := logger.InitFile(filepath.Join(cfg.WorkDir, "logs")); err == nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, errc := apiClient(cfg).Watch(ctx, id, watchInterval)

	final, err := tea.NewProgram(tui.NewModel(id, updates, errc)).Run()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	m := final.(tui.Model)
	if m.Err() != nil {
		return m.Err()
	}
	if t := m.Task(); t != nil && t.Status == models.StatusFailed && t.Error != nil {
		return fmt.Errorf("task failed: %s: %s", t.Error.Kind, t.Error.Message)
	}
	return nil
}

func newDownloadCmd(getConfig func() *models.Config) *cobra.Command {
	var (
		index  int
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a task's results",
		Long:  "Download one result by --index, or the single result / a zip of all results when no index is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var idx *int
			if cmd.Flags().Changed("index") {
				idx = &index
			}
			path, err := apiClient(getConfig()).Download(cmd.Context(), args[0], idx, outDir)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Result file index")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write into")
	return cmd
}

func newCancelCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiClient(getConfig()).Cancel(cmd.Context(), args[0])
		},
	}
}

func newDeleteCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a finished task and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiClient(getConfig()).Delete(cmd.Context(), args[0])
		},
	}
}

func newLanguagesCmd(getConfig func() *models.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages and their providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			langs, err := apiClient(getConfig()).Languages(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tPROVIDER\tAVAILABLE")
			for _, l := range langs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", l.Code, l.Name, l.Provider, l.Available)
			}
			return w.Flush()
		},
	}
}
