package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/spf13/cobra"
)

func NewAskCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a one-shot prompt",
		Long:  `Send a single prompt to the chat model. Relevant chunks from the index are attached when one exists.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeAskRunner(svc),
	}

	cmd.Flags().Bool("no-context", false, "Do not attach retrieved context")
	cmd.Flags().String("provider", "", "Chat provider to use (default from config)")
	return cmd
}

func makeAskRunner(svc servicesFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := svc(cmd)
		if err != nil {
			return err
		}

		noContext, _ := cmd.Flags().GetBool("no-context")
		providerName, _ := cmd.Flags().GetString("provider")
		asJSON, _ := cmd.Flags().GetBool("json")

		provider, err := s.Provider(cmd.Context(), providerName)
		if err != nil {
			return err
		}

		reply, err := s.Ask(provider).Execute(cmd.Context(), internal.AskInput{
			Prompt:    strings.Join(args, " "),
			NoContext: noContext,
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

func printReply(cmd *cobra.Command, reply internal.Reply) {
	fmt.Fprintf(cmd.OutOrStdout(), "\nSpeedChaser AI:\n%s\n", reply.Text)
}
