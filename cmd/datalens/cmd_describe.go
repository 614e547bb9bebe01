package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

var describeHead int

var describeCmd = &cobra.Command{
	Use:   "describe [file]",
	Short: "Print the dataset summary without calling the model",
	Long: `Print what the report tools see: shape, column types, null and 'nan'
counts, duplicate rows and descriptive statistics.

Examples:
  datalens describe entregas.csv
  datalens describe vendas.xlsx --head 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := dataset.LoadFile(args[0], dataset.Options{})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), describe(f, describeHead))
		return nil
	},
}

func init() {
	describeCmd.Flags().IntVar(&describeHead, "head", 5, "rows to preview")
}

func describe(f *dataset.Frame, head int) string {
	s := f.Summary()
	return fmt.Sprintf(`%s

%s

Dimensões: %s

Colunas e tipos de dados:
%s

Valores nulos por coluna:
%s

Strings 'nan' por coluna:
%s

Linhas duplicadas: %d

Estatísticas descritivas:
%s
`, f, f.HeadMarkdown(head), s.FormatShape(), s.FormatTypes(), s.FormatNulls(), s.FormatNaNLiterals(), s.Duplicates, s.FormatDescribe())
}
