package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Define and inspect tables of a project",
	}
	cmd.PersistentFlags().String("project", "", "Project ID")
	cmd.PersistentFlags().String("owner", "", "User ID of the project owner")
	cmd.AddCommand(newTableApplyCmd(), newTableDescribeCmd(), newTableListCmd(), newTableDropCmd())
	return cmd
}

// projectSession opens a session bound to the --project and --owner flags.
func projectSession(cmd *cobra.Command) (*session, error) {
	project, _ := cmd.Flags().GetString("project")
	owner, _ := cmd.Flags().GetString("owner")
	if project == "" {
		return nil, fmt.Errorf("--project is required")
	}
	s, err := openSession(owner)
	if err != nil {
		return nil, err
	}
	if err := s.bindProject(project); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func newTableApplyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Define the tables in a YAML file",
		Long: `Define every table in FILE. Documents are separated by "---" and may
reference environment variables as {{ .ENV.NAME }}. Tables that already
exist are reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := ReadDefinitions(file)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no table definitions in %s", file)
			}
			s, err := projectSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var results []map[string]string
			failed := false
			for _, doc := range docs {
				t, aerr := tablemanager.DefineTable(s.ctx, doc)
				if aerr != nil {
					failed = true
					results = append(results, map[string]string{"error": aerr.Error()})
					if !jsonOutput {
						errorLabel.Fprintf(os.Stderr, "✗ %v\n", aerr)
					}
					continue
				}
				results = append(results, map[string]string{"table": t.Name, "physicalName": t.PhysicalName})
				if !jsonOutput {
					okLabel.Print("✓ ")
					fmt.Printf("table %s defined\n", t.Name)
				}
			}
			if jsonOutput {
				printJSON(results)
			}
			if failed {
				return ErrAlreadyHandled
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of table definitions")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newTableDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Print the definition a table was created from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := projectSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			def, aerr := tablemanager.GetDefinition(s.ctx, args[0])
			if aerr != nil {
				return aerr
			}
			if jsonOutput {
				fmt.Println(string(def))
				return nil
			}
			out, err := toYAML(def)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newTableListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tables of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := projectSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			tables, aerr := tablemanager.ListTables(s.ctx)
			if aerr != nil {
				return aerr
			}
			if jsonOutput {
				descs := make([]*tablemanager.TableDescriptor, 0, len(tables))
				for _, t := range tables {
					descs = append(descs, tablemanager.Describe(t))
				}
				printJSON(descs)
				return nil
			}
			for _, t := range tables {
				fmt.Printf("%-32s %8d rows  %s\n", t.Name, t.RowCount, t.PhysicalName)
			}
			return nil
		},
	}
}

func newTableDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop NAME",
		Short: "Drop a table and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := projectSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if aerr := tablemanager.DropTable(s.ctx, args[0]); aerr != nil {
				return aerr
			}
			printOK(fmt.Sprintf("table %s dropped", args[0]), map[string]string{"table": args[0], "status": "dropped"})
			return nil
		},
	}
}
