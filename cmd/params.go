package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/llmkit/internal/orchestrator"
	"github.com/Yates-Labs/llmkit/internal/params"
)

var showFormat string

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Work with parameter documents",
}

var paramsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective parameters",
	Long: `Print the parameters resolved from --config, --params-file and --param.

Examples:
  llmkit params show
  llmkit params show --params-file params.yaml -p temperature=0
  llmkit params show --format toml`,
	Args: cobra.NoArgs,
	RunE: runParamsShow,
}

var paramsSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Write the effective parameters to a document",
	Long: `Write the effective parameters to path. The format follows the extension:
.yaml/.yml for YAML, .toml for TOML, anything else JSON. The file is replaced
atomically.`,
	Args: cobra.ExactArgs(1),
	RunE: runParamsSave,
}

var paramsValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a parameter document",
	Args:  cobra.ExactArgs(1),
	RunE:  runParamsValidate,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.AddCommand(paramsShowCmd, paramsSaveCmd, paramsValidateCmd)
	paramsShowCmd.Flags().StringVar(&showFormat, "format", "", "Print as a document: json, yaml or toml")
}

func resolveParams() (params.Set, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return params.Set{}, "", err
	}
	set, err := orchestrator.ResolveParams(context.Background(), cfg)
	if err != nil {
		return params.Set{}, "", err
	}
	return set, orchestrator.ProviderName(cfg.Provider), nil
}

func runParamsShow(cmd *cobra.Command, args []string) error {
	set, name, err := resolveParams()
	if err != nil {
		return err
	}

	if showFormat != "" {
		return set.Encode(cmd.OutOrStdout(), params.Format(showFormat))
	}
	fmt.Fprint(cmd.OutOrStdout(), set.DisplayString(name))
	return nil
}

func runParamsSave(cmd *cobra.Command, args []string) error {
	set, _, err := resolveParams()
	if err != nil {
		return err
	}
	if err := set.Save(args[0]); err != nil {
		return err
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Saved parameters to "+args[0]))
	return nil
}

func runParamsValidate(cmd *cobra.Command, args []string) error {
	set, err := params.LoadSet(args[0])
	if err != nil {
		return err
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
		fmt.Sprintf("✓ %s is valid (model %s, n=%d, best_of=%d)", args[0], set.Model, set.N, set.BestOf)))
	return nil
}
