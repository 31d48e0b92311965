package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tablemanager"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and delete projects",
	}
	cmd.AddCommand(newProjectCreateCmd(), newProjectDeleteCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var owner, slug, id string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(owner)
			if err != nil {
				return err
			}
			defer s.close()

			p := &models.Project{ProjectID: uuid.New(), Slug: slug, OwnerID: owner}
			if id != "" {
				if p.ProjectID, err = uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid project id %q", id)
				}
			}
			if aerr := db.DB(s.ctx).CreateProject(s.ctx, p); aerr != nil {
				return aerr
			}
			printOK(fmt.Sprintf("project %s created", p.ProjectID), map[string]any{
				"projectId": p.ProjectID.String(),
				"slug":      p.Slug,
				"owner":     p.OwnerID,
				"createdAt": p.CreatedAt,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "User ID of the owner")
	cmd.Flags().StringVar(&slug, "slug", "", "Short human readable name")
	cmd.Flags().StringVar(&id, "id", "", "Project ID to use instead of a generated one")
	return cmd
}

func newProjectDeleteCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project and all of its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(owner)
			if err != nil {
				return err
			}
			defer s.close()
			if err := s.bindProject(args[0]); err != nil {
				return err
			}
			if aerr := tablemanager.DropProject(s.ctx); aerr != nil {
				return aerr
			}
			printOK(fmt.Sprintf("project %s deleted", args[0]), map[string]string{"projectId": args[0], "status": "deleted"})
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "User ID of the owner")
	return cmd
}
