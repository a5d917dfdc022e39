package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Translate a natural-language question into SQL",
	Long: `Maps a question such as "total amount by customer" onto SQL using fixed phrase patterns and
fuzzy column matching. The mapping is best effort.`,
	Example: `./chatdb ask "average amount by customer" --dialect mysql --host localhost --port 3306 --username root --password pass --database shop --execute`,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	execute, _ := cmd.Flags().GetBool("execute")

	questions := args
	if file != "" {
		lines, err := utils.ReadLinesFromFile(file)
		if err != nil {
			return err
		}
		questions = append(questions, lines...)
	}
	if len(questions) == 0 {
		return fmt.Errorf("a question or --file is required")
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		w := cmd.OutOrStdout()
		var matched []chatdb.MappedQuestion
		for _, q := range questions {
			res, err := svc.MapNaturalLanguage(ctx, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Q: %s\n", res.Question)
			if !res.Matched {
				fmt.Fprintf(w, "   %s\n", res.SQL)
				continue
			}
			fmt.Fprintf(w, "   %s;\n   -- %s\n", res.SQL, svc.DescribeQuery(res.SQL, nil))
			matched = append(matched, res)
		}

		if !execute || len(matched) == 0 {
			return nil
		}
		if !confirm(cmd, fmt.Sprintf("%d mapped queries", len(matched))) {
			return nil
		}
		for _, res := range matched {
			rows, err := svc.ExecuteQuery(ctx, res.SQL, nil)
			if err != nil {
				fmt.Fprintf(w, "\n%s\nfailed: %v\n", res.SQL, err)
				continue
			}
			fmt.Fprintf(w, "\n%s\n", res.SQL)
			printRows(w, rows)
		}
		return nil
	})
}

func init() {
	askCmd.Flags().StringP("file", "f", "", "File with one question per line")
	askCmd.Flags().Bool("execute", false, "Run the mapped queries and print their rows")
}
