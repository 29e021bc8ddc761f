package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hvplane/cmd/hvplane/handlers"
)

// Plan returns the command group for VM plans.
func Plan() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage VM plans used for capacity estimates",
	}

	cmd.AddCommand(planAdd())
	cmd.AddCommand(planList())

	return cmd
}

func planAdd() *cobra.Command {
	var in handlers.PlanAddInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a VM plan",
		Long: `Store a VM plan. Memory and disk accept plain numbers (MiB and GiB)
or quantities such as 4Gi or 512Mi. A dimension of 0 does not limit estimates.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.PlanAdd(cmd.Context(), global, in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Plan name")
	cmd.Flags().IntVar(&in.CPU, "cpu", 0, "vCPUs")
	cmd.Flags().StringVar(&in.Memory, "memory", "0", "Memory (MiB or quantity)")
	cmd.Flags().StringVar(&in.Disk, "disk", "0", "Disk (GiB or quantity)")
	cmd.Flags().BoolVar(&in.Inactive, "inactive", false, "Store the plan as inactive")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func planList() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List VM plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.PlanList(cmd.Context(), global, activeOnly)
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active plans")

	return cmd
}
