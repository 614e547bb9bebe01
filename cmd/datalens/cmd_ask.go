package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/report"
	"github.com/golovatskygroup/data-lens/internal/session"
)

var askReport string

var askCmd = &cobra.Command{
	Use:   "ask [file] [question]",
	Short: "Ask one question about a data file",
	Long: `Load a CSV or XLSX file and route one question through the assistant.
Chart pages and report files are written to the artifacts directory.

Examples:
  datalens ask entregas.csv "Qual é a média do tempo de entrega?"
  datalens ask entregas.csv --report statistics`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askReport, "report", "", "run a quick report instead of a question (general_info, statistics)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if len(args) < 2 && askReport == "" {
		return fmt.Errorf("a question or --report is required")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	f, err := dataset.LoadFile(args[0], dataset.Options{})
	if err != nil {
		return err
	}
	sess := session.NewManager().Create(f)
	out := cmd.OutOrStdout()

	if askReport != "" {
		kind, err := report.ParseKind(askReport)
		if err != nil {
			return err
		}
		r, ans, err := a.asst.QuickReport(cmd.Context(), sess, kind)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, r.Text)
		for _, it := range ans.Artifacts {
			fmt.Fprintf(out, "\n%s: %s\n", it.Name, it.Path)
		}
		return nil
	}

	ans, err := a.asst.Ask(cmd.Context(), sess, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ans.Text)
	for _, it := range ans.Artifacts {
		fmt.Fprintf(out, "\n%s: %s\n", it.Name, it.Path)
	}
	return nil
}
