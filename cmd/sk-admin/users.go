package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

func createUserCmd() *cobra.Command {
	var in service.CreateUserInput

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account, typically the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			users := service.NewUserService(repository.NewUserRepository(conn))
			user, err := users.CreateUser(cmd.Context(), systemActor, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.Email, "email", "", "Login email")
	flags.StringVar(&in.Password, "password", "", "Initial password")
	flags.StringVar(&in.Username, "username", "", "Unique username")
	flags.StringVar(&in.FullName, "full-name", "", "Display name")
	flags.StringVar(&in.Phone, "phone", "", "Mobile number for SMS notices")
	flags.StringVar(&in.Role, "role", models.RoleAdmin, "Account role (youth, staff, admin)")
	for _, name := range []string{"email", "password", "username"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
