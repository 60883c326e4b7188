package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call [prompt]",
	Short: "Complete a single prompt and print the text",
	Long: `Send one prompt to the configured provider and print the first generation.

Examples:
  llmkit call "What would be a good company name for a company that makes colorful socks?"
  llmkit call "Tell me a joke" -p temperature=0.2 -p max_tokens=64
  llmkit call "Hello" --provider anthropic -p model=claude-3-5-haiku-latest`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

var callRaw bool

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().BoolVar(&callRaw, "raw", false, "Print only the completion text, without styling")
}

func runCall(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	pipeline, finish, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := finish(); err == nil {
			err = ferr
		}
	}()

	text, err := pipeline.Call(ctx, args[0])
	if err != nil {
		return fmt.Errorf("call failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if callRaw {
		fmt.Fprintln(out, text)
		return nil
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F780FF")).
		Bold(true)
	answerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E9E9F4"))

	fmt.Fprintln(out, headerStyle.Render(pipeline.Wrapper().Name()+":"))
	fmt.Fprintln(out, answerStyle.Render(strings.TrimSpace(text)))
	return nil
}
