package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/retention-engine/api"
	"github.com/warp/retention-engine/factory"
	"github.com/warp/retention-engine/retention"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Manage retention policy templates",
}

var policiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a YAML policy catalog into the store",
	Long: `Import a YAML policy catalog. Every policy is validated before any is
saved; existing policies with the same id are replaced.

Example catalog:
  policies:
    - id: std-5
      name: Standard 5%
      retention_percentage: 5
      release_type: TIME_BASED
      defect_liability_period: 365
      is_default: true

Examples:
  retention policies import -f catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runPoliciesImport,
}

var policiesPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Print the built-in policies as a YAML catalog, or save them",
	Args:  cobra.NoArgs,
	RunE:  runPoliciesPresets,
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored policies as a YAML catalog",
	Args:  cobra.NoArgs,
	RunE:  runPoliciesList,
}

func init() {
	policiesImportCmd.Flags().StringP("file", "f", "", "catalog file (YAML)")
	_ = policiesImportCmd.MarkFlagRequired("file")

	policiesPresetsCmd.Flags().Bool("save", false, "save the presets to the store instead of printing them")

	policiesCmd.AddCommand(policiesImportCmd)
	policiesCmd.AddCommand(policiesPresetsCmd)
	policiesCmd.AddCommand(policiesListCmd)

	scenarioCmd.AddCommand(scenarioLoadCmd)
}

func runPoliciesImport(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	policies, err := factory.NewPolicyFactory().LoadCatalog(f)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}

	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := savePolicies(cmd, env, policies); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d policies from %s\n", len(policies), path)
	return nil
}

func runPoliciesPresets(cmd *cobra.Command, _ []string) error {
	pf := factory.NewPolicyFactory()
	presets, err := pf.Presets()
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); !save {
		return pf.WriteCatalog(cmd.OutOrStdout(), presets)
	}

	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := savePolicies(cmd, env, presets); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d preset policies\n", len(presets))
	return nil
}

func runPoliciesList(cmd *cobra.Command, _ []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	policies, err := env.service.ListPolicies(cmd.Context())
	if err != nil {
		return err
	}
	return factory.NewPolicyFactory().WriteCatalog(cmd.OutOrStdout(), policies)
}

func savePolicies(cmd *cobra.Command, env *environment, policies []retention.Policy) error {
	for _, p := range policies {
		if _, err := env.service.SavePolicy(cmd.Context(), p); err != nil {
			return fmt.Errorf("save policy %s: %w", p.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIOS
// =============================================================================

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Demo scenarios",
}

var scenarioLoadCmd = &cobra.Command{
	Use:   "load <scenario-id>",
	Short: "Reset the store and load a demo scenario",
	Long: `Reset the store and load a demo scenario.

Scenarios: standard-portfolio, warranty-split, tiered-contract

Examples:
  retention scenario load warranty-split --config dev.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.Close()

		handler := api.NewHandler(env.store, env.logger)
		if err := handler.LoadScenarioByID(cmd.Context(), args[0]); err != nil {
			return err
		}
		env.logger.Info("scenario ready", zap.String("scenario", args[0]), zap.String("database", env.cfg.Database.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded scenario %s\n", args[0])
		return nil
	},
}
