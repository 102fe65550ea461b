package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/showbox88/GTPinput/internal/core"
)

func newRulesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recurring rules",
	}

	cmd.AddCommand(
		newRulesAddCmd(app),
		newRulesEditCmd(app),
		newRulesDeleteCmd(app),
		newRulesListCmd(app),
		newRulesToggleCmd(app, "enable", true),
		newRulesToggleCmd(app, "disable", false),
	)

	return cmd
}

// ruleFlags holds the rule definition flags shared by add and edit.
type ruleFlags struct {
	owner, name, amount, category, frequency, start string
	anchor                                          int
	inactive                                        bool
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "Owner ID")
	cmd.Flags().StringVar(&f.name, "name", "", "Rule name, used as the entry item")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in currency units, e.g. 15.99")
	cmd.Flags().StringVar(&f.category, "category", string(core.CategoryOther), "Ledger category ("+categoryList()+")")
	cmd.Flags().StringVar(&f.frequency, "frequency", string(core.Monthly), "Weekly|Monthly|Yearly")
	cmd.Flags().IntVar(&f.anchor, "anchor", 0, "Schedule anchor")
	cmd.Flags().StringVar(&f.start, "start", "", "First due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "Store the rule disabled")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	cmd.MarkFlagsMutuallyExclusive("anchor", "start")
}

// rule builds a validated rule from the flags.
func (f *ruleFlags) rule(cmd *cobra.Command, loc *time.Location) (core.RecurringRule, error) {
	money, err := core.MoneyFromDecimal(f.amount)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("invalid --amount %q: %w", f.amount, err)
	}
	freq, err := core.ParseFrequency(f.frequency)
	if err != nil {
		return core.RecurringRule{}, err
	}

	var schedule core.Schedule
	switch {
	case cmd.Flags().Changed("anchor"):
		schedule = core.Schedule{Frequency: freq, Anchor: f.anchor}
	case f.start != "":
		d, err := core.ParseDate(f.start, loc)
		if err != nil {
			return core.RecurringRule{}, fmt.Errorf("invalid --start %q: %w", f.start, err)
		}
		schedule = core.ScheduleFromStartDate(freq, d)
	default:
		return core.RecurringRule{}, errors.New("one of --anchor or --start is required")
	}

	rule := core.RecurringRule{
		OwnerID:  strings.TrimSpace(f.owner),
		Name:     strings.TrimSpace(f.name),
		Amount:   money,
		Category: core.Category(f.category),
		Schedule: schedule,
		Active:   !f.inactive,
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	return rule, nil
}

func newRulesAddCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a recurring rule",
		Long: "Create a recurring rule. The anchor is a weekday index (Monday = 0) " +
			"for Weekly, a day of month for Monthly and a day of year for Yearly. " +
			"--start derives it from a first due date instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := flags.rule(cmd, app.Location)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			id, err := app.Store.CreateRule(ctx, rule)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d %s %s %s\n", id, rule.Name, rule.Amount, rule.Schedule)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newRulesEditCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace the definition of a recurring rule",
		Long: "Replace name, amount, category and schedule of a rule. Entries " +
			"already generated in the current cycle are not regenerated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			rule, err := flags.rule(cmd, app.Location)
			if err != nil {
				return err
			}
			rule.ID = id

			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			if err := app.Store.UpdateRule(ctx, rule); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated rule %d %s %s %s\n", id, rule.Name, rule.Amount, rule.Schedule)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newRulesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recurring rule, keeping its ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			if err := app.Store.DeleteRule(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d deleted\n", id)
			return nil
		},
	}
}

func newRulesListCmd(app *App) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active rules of an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			rules, err := app.Store.ListActiveRules(ctx, owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintf(out, "No active rules for %s.\n", owner)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAMOUNT\tCATEGORY\tSCHEDULE")
			for _, r := range rules {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Amount, r.Category, r.Schedule)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newRulesToggleCmd(app *App, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			if err := app.Store.SetRuleActive(ctx, id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d %sd\n", id, use)
			return nil
		},
	}
}

func parseRuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", s)
	}
	return id, nil
}

func categoryList() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, "|")
}
