// Command ecologits estimates the environmental impacts of LLM inference requests.
package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	ecologits "github.com/omegabytes/ecologits-go"
	"github.com/omegabytes/ecologits-go/aimodel"
	"github.com/omegabytes/ecologits-go/request"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "ecologits",
		Short: "Estimate the environmental impacts of LLM inference",
		Long: `ecologits estimates the energy consumption, global warming potential,
abiotic resource depletion and primary energy of a single LLM inference request.

Coefficients and reference data are read from an optional YAML file and from
ECOLOGITS_* environment variables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		newEstimateCmd(&cfgFile),
		newModelsCmd(&cfgFile),
		newZonesCmd(&cfgFile),
	)
	return rootCmd
}

func newEstimateCmd(cfgFile *string) *cobra.Command {
	var (
		provider     string
		model        string
		outputTokens int64
		latency      float64
		zone         string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the impacts of one request",
		Example: `  ecologits estimate --provider openai --model gpt-4o-mini --output-tokens 300 --latency 4.2
  ecologits estimate --provider mistralai --model open-mistral-7b --output-tokens 1000 --zone FRA`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if latency == 0 {
				latency = math.Inf(1)
			}

			container, err := buildContainer(*cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return container.Invoke(func(e *ecologits.Estimator) error {
				estimation, err := e.Estimate(provider, model, outputTokens, latency, zone)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(estimation)
			})
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "model provider (openai, mistralai, huggingface_hub, ...)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model name or alias")
	cmd.Flags().Int64VarP(&outputTokens, "output-tokens", "t", 0, "number of generated tokens")
	cmd.Flags().Float64VarP(&latency, "latency", "l", 0, "measured request latency in seconds (0 when unknown)")
	cmd.Flags().StringVarP(&zone, "zone", "z", "", "electricity mix zone (defaults to the configured zone)")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("output-tokens")

	return cmd
}

func newModelsCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := buildContainer(*cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return container.Invoke(func(catalog *aimodel.Catalog) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PROVIDER\tNAME\tARCHITECTURE\tACTIVE\tTOTAL")
				for _, m := range catalog.Models() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						m.Provider(), m.Name(), m.Architecture().Type, m.ActiveParamCount(), m.TotalParamCount())
				}
				return w.Flush()
			})
		},
	}
}

func newZonesCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List the electricity mix zones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := buildContainer(*cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return container.Invoke(func(mixes *request.ElectricityMixes) error {
				for _, zone := range mixes.Zones() {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), zone); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
