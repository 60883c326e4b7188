package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/llmkit/internal/llm"
)

var (
	promptsFile string
	jsonOutput  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompts...]",
	Short: "Complete a batch of prompts in one request",
	Long: `Send every prompt to the provider in a single request and print the
generations for each prompt together with the token usage.

Prompts come from the arguments and, with --file, one per line from a file
("-" reads standard input). Blank lines are skipped.

Examples:
  llmkit generate "Tell me a joke" "Tell me a poem"
  llmkit generate --file prompts.txt -p n=2 -p best_of=2
  llmkit generate "Tell me a joke" --json`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&promptsFile, "file", "f", "", "Read prompts from a file, one per line")
	generateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	prompts := append([]string(nil), args...)
	if promptsFile != "" {
		fromFile, err := readPrompts(promptsFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		prompts = append(prompts, fromFile...)
	}

	pipeline, finish, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := finish(); err == nil {
			err = ferr
		}
	}()

	result, err := pipeline.Generate(ctx, prompts)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(cmd.OutOrStdout(), prompts, result)
	return nil
}

// readPrompts reads one prompt per non-blank line.
func readPrompts(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open prompts file: %w", err)
		}
		defer file.Close()
		r = file
	}

	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return prompts, nil
}

func printResult(out io.Writer, prompts []string, result *llm.Result) {
	var (
		promptColor  = lipgloss.Color("#8BE9FD") // Cyan
		indexColor   = lipgloss.Color("#FF79C6") // Pink
		answerColor  = lipgloss.Color("#E9E9F4") // Light purple/white
		summaryColor = lipgloss.Color("#6272A4") // Muted purple
	)

	promptStyle := lipgloss.NewStyle().
		Foreground(promptColor).
		Bold(true)

	indexStyle := lipgloss.NewStyle().
		Foreground(indexColor)

	answerStyle := lipgloss.NewStyle().
		Foreground(answerColor).
		PaddingLeft(2)

	summaryStyle := lipgloss.NewStyle().
		Foreground(summaryColor).
		Italic(true)

	for i, group := range result.Generations() {
		fmt.Fprintln(out, promptStyle.Render(fmt.Sprintf("Prompt %d: %s", i+1, prompts[i])))
		for j, gen := range group {
			if len(group) > 1 {
				fmt.Fprintln(out, indexStyle.Render(fmt.Sprintf("  [%d]", j+1)))
			}
			fmt.Fprintln(out, answerStyle.Render(strings.TrimSpace(gen.Text)))
		}
		fmt.Fprintln(out)
	}

	usage := result.TokenUsage()
	fmt.Fprintln(out, summaryStyle.Render(fmt.Sprintf("Model: %s  •  Tokens: %d prompt + %d completion = %d",
		result.ModelName(), usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)))
}
