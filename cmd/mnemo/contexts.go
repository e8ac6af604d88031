package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(viper.GetString("strategy"))
			if err != nil {
				return err
			}
			ids, err := container.Manager.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No contexts yet.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <context-id>",
		Short: "Create a new context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(viper.GetString("strategy"))
			if err != nil {
				return err
			}
			if err := container.Manager.Create(args[0]); err != nil {
				return err
			}
			fmt.Printf("Created context %q (%s strategy)\n", args[0], container.Manager.Strategy().Name())
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <context-id>",
		Short: "Delete a context and its recall data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(viper.GetString("strategy"))
			if err != nil {
				return err
			}
			if err := container.Manager.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted context %q\n", args[0])
			return nil
		},
	}
}
