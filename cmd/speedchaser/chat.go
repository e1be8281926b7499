package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/4thel00z/speedchaser/internal"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func NewChatCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start guided multi-turn mode",
		Long: `Chat with the model. Every message is sent with the nearest chunks from the
vector index as system context. Type 'exit' to quit.`,
		Args: cobra.NoArgs,
		RunE: makeChatRunner(svc),
	}

	cmd.Flags().String("context", "", "Named context whose prompt to use (e.g. self-reference)")
	cmd.Flags().String("provider", "", "Chat provider to use (default from config)")
	cmd.Flags().Bool("plain", false, "Use a plain line prompt instead of the full screen interface")
	cmd.Flags().Bool("no-ingest-prompt", false, "Do not offer to ingest when no index exists")
	return cmd
}

func makeChatRunner(svc servicesFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s, err := svc(cmd)
		if err != nil {
			return err
		}

		contextName, _ := cmd.Flags().GetString("context")
		providerName, _ := cmd.Flags().GetString("provider")
		plain, _ := cmd.Flags().GetBool("plain")
		noPrompt, _ := cmd.Flags().GetBool("no-ingest-prompt")

		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if !s.Store.Exists() && !noPrompt {
			if err := offerIngest(cmd, s, in, contextName); err != nil {
				return err
			}
		}
		if _, err := s.Store.Current(); errors.Is(err, internal.ErrNoIndex) {
			fmt.Fprintln(out, "\nSpeedChaser AI: No vector index found. I'll proceed without doc retrieval.")
		} else if err != nil {
			return err
		}

		provider, err := s.Provider(cmd.Context(), providerName)
		if err != nil {
			return err
		}
		session, err := s.Chat(provider, contextName)
		if err != nil {
			return err
		}

		if !plain {
			header := "Speed Chaser guided mode"
			if contextName != "" {
				header += " [" + contextName + "]"
			}
			model := internal.NewChatModel(cmd.Context(), session, header)
			_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		}

		fmt.Fprintln(out, "\nSpeedChaser AI: Welcome to Speed Chaser Guided Mode!")
		if contextName != "" {
			fmt.Fprintf(out, "\nSpeedChaser AI: Current context set to '%s'\n", contextName)
		}
		fmt.Fprintln(out, "\nSpeedChaser AI: Entering continuous chat mode (type 'exit' to quit).")

		return chatLoop(cmd, session, in)
	}
}

func chatLoop(cmd *cobra.Command, session *internal.ChatSession, in *bufio.Reader) error {
	out := cmd.OutOrStdout()

	for {
		fmt.Fprint(out, "\nYou: ")
		line, err := in.ReadString('\n')
		prompt := strings.TrimSpace(line)
		if err != nil && prompt == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read prompt: %w", err)
		}

		if strings.EqualFold(prompt, "exit") {
			return nil
		}
		if prompt == "" {
			continue
		}

		reply, sendErr := session.Send(cmd.Context(), prompt)
		if sendErr != nil && !errors.Is(sendErr, internal.ErrProvider) {
			fmt.Fprintf(out, "\nSpeedChaser AI: Error: %v\n", sendErr)
			continue
		}
		fmt.Fprintf(out, "\nSpeedChaser AI:\n%s\n", reply.Text)

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func offerIngest(cmd *cobra.Command, s *internal.Services, in *bufio.Reader, contextName string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nSpeedChaser AI: I notice you don't have an index built yet. Would you like to ingest your files now? (y/n)")
	fmt.Fprint(out, "> ")

	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read answer: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(line), "y") {
		return nil
	}

	path, err := s.IngestPath("", contextName)
	if err != nil {
		return err
	}
	if err := runIngest(cmd, s, path); err != nil {
		fmt.Fprintf(out, "\nSpeedChaser AI: Ingestion failed: %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "\nSpeedChaser AI: Ingestion complete.")
	return nil
}
