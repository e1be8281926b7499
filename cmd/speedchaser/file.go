package main

import (
	"errors"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/spf13/cobra"
)

func NewFileCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file <name>",
		Short: "Run a task against a file from the refs folder",
		Long:  `Extract a file from the configured refs folder and send its text together with a task to the chat model.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeFileRunner(svc),
	}

	cmd.Flags().StringP("task", "t", "", "What to do with the file (default: process it)")
	cmd.Flags().String("provider", "", "Chat provider to use (default from config)")
	return cmd
}

func makeFileRunner(svc servicesFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := svc(cmd)
		if err != nil {
			return err
		}

		task, _ := cmd.Flags().GetString("task")
		providerName, _ := cmd.Flags().GetString("provider")
		asJSON, _ := cmd.Flags().GetBool("json")

		provider, err := s.Provider(cmd.Context(), providerName)
		if err != nil {
			return err
		}

		reply, err := s.FileTask(provider).Execute(cmd.Context(), internal.FileTaskInput{
			Name: args[0],
			Task: task,
		})
		if err != nil && !errors.Is(err, internal.ErrProvider) {
			return err
		}

		if asJSON {
			return writeJSON(cmd, reply)
		}
		printReply(cmd, reply)
		return nil
	}
}
