package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"meterease/internal/service/billing"
)

var billTariff string

var billCmd = &cobra.Command{
	Use:   "bill UNITS",
	Short: "Price a consumption in units against the tariff",
	Long: `Prints the slab breakdown, subsidies and final amount for UNITS.
The tariff comes from --tariff, then TARIFF_FILE, then the built-in domestic tariff.`,
	Args: cobra.ExactArgs(1),
	RunE: runBill,
}

func init() {
	billCmd.Flags().StringVar(&billTariff, "tariff", "", "YAML tariff file")
	rootCmd.AddCommand(billCmd)
}

func runBill(cmd *cobra.Command, args []string) error {
	units, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid units %q", args[0])
	}

	path := billTariff
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.TariffFile
	}

	tariff, err := billing.LoadTariff(path)
	if err != nil {
		return err
	}

	bill, err := tariff.Calculate(units)
	if errors.Is(err, billing.ErrNegativeUnits) {
		fmt.Fprintln(cmd.OutOrStdout(), "Consumption is negative, check the readings. No bill generated.")
		return nil
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SLAB\tRATE\tUNITS\tAMOUNT\t")
	for _, s := range bill.Slabs {
		to := "above"
		if s.To != 0 {
			to = humanize.Ftoa(s.To)
		}
		fmt.Fprintf(tw, "%s-%s\t%s\t%s\t%s\t\n", humanize.Ftoa(s.From), to,
			money(s.Rate), humanize.FtoaWithDigits(s.Units, 2), money(s.Amount))
	}
	fmt.Fprintf(tw, "Energy charges\t\t\t%s\t\n", money(bill.EnergyCharges))
	fmt.Fprintf(tw, "CC subsidy\t\t\t-%s\t\n", money(bill.CCSubsidy))
	fmt.Fprintf(tw, "Net charges\t\t\t%s\t\n", money(bill.NetCharges))
	fmt.Fprintf(tw, "Fixed subsidy\t\t\t-%s\t\n", money(bill.FixedSubsidy))
	fmt.Fprintf(tw, "Final amount\t\t\t%s\t\n", money(bill.FinalAmount))
	return tw.Flush()
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}
