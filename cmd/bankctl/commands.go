package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
)

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bankctl",
		Short:         "Operate a shared battery bank",
		Long:          `bankctl registers battery facilities and records producers' energy deposits and withdrawals against them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./bankctl.yaml)")
	pf.String("store", driverMemory, "store driver (memory, redis)")
	pf.String("redis-url", "", "redis connection URL")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")
	_ = a.v.BindPFlag("store.driver", pf.Lookup("store"))
	_ = a.v.BindPFlag("store.redis_url", pf.Lookup("redis-url"))
	_ = a.v.BindPFlag("logger.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logger.format", pf.Lookup("log-format"))

	root.AddCommand(
		a.facilityCommand(),
		a.depositCommand(),
		a.withdrawCommand(),
		a.reconcileCommand(),
		a.ledgerCommand(),
		a.demoCommand(),
	)
	return root
}

func parseFacility(s string) (id.FacilityID, error) {
	fid, err := id.ParseFacilityID(s)
	if err != nil {
		return id.FacilityID{}, fmt.Errorf("facility id: %w", err)
	}
	return fid, nil
}

func (a *app) facilityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facility",
		Short: "Manage battery facilities",
	}

	var (
		owner, name string
		fee         uint64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a facility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := a.bank.CreateFacility(cmd.Context(), batterybank.OwnerGrant(owner), &facility.Facility{
				Name:       name,
				StorageFee: fee,
			})
			if err != nil {
				return err
			}
			return a.print(f)
		},
	}
	create.Flags().StringVar(&owner, "owner", "", "owner identity")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().Uint64Var(&fee, "fee", 0, "storage fee per unit stored")
	_ = create.MarkFlagRequired("owner")

	show := &cobra.Command{
		Use:   "show <facility-id>",
		Short: "Show a facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			f, err := a.bank.GetFacility(cmd.Context(), fid)
			if err != nil {
				return err
			}
			return a.print(f)
		},
	}

	var listOpts facility.ListOpts
	list := &cobra.Command{
		Use:   "list",
		Short: "List facilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs, err := a.bank.ListFacilities(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return a.print(fs)
		},
	}
	list.Flags().StringVar(&listOpts.Owner, "owner", "", "only facilities of this owner")
	list.Flags().IntVar(&listOpts.Limit, "limit", 0, "maximum results")
	list.Flags().IntVar(&listOpts.Offset, "offset", 0, "results to skip")

	cmd.AddCommand(create, show, list)
	return cmd
}

func (a *app) depositCommand() *cobra.Command {
	var (
		producerID   string
		amount, rate uint64
	)
	cmd := &cobra.Command{
		Use:   "deposit <facility-id>",
		Short: "Store energy for a producer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			l, err := a.bank.Deposit(cmd.Context(), fid, batterybank.ProducerGrant(producerID), amount, rate)
			if err != nil {
				return err
			}
			return a.print(l)
		},
	}
	cmd.Flags().StringVar(&producerID, "producer", "", "producer identity")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "units to store")
	cmd.Flags().Uint64Var(&rate, "rate", 0, "consumption rate per unit")
	_ = cmd.MarkFlagRequired("producer")
	return cmd
}

func (a *app) withdrawCommand() *cobra.Command {
	var (
		producerID, owner string
		amount            uint64
	)
	cmd := &cobra.Command{
		Use:   "withdraw <facility-id>",
		Short: "Consume a producer's stored energy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			l, err := a.bank.Withdraw(cmd.Context(), fid,
				batterybank.ProducerGrant(producerID), batterybank.OwnerGrant(owner), amount)
			if err != nil {
				return err
			}
			return a.print(l)
		},
	}
	cmd.Flags().StringVar(&producerID, "producer", "", "producer identity")
	cmd.Flags().StringVar(&owner, "owner", "", "facility owner authorizing the withdrawal")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "units to consume")
	_ = cmd.MarkFlagRequired("producer")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (a *app) reconcileCommand() *cobra.Command {
	var producerID string
	cmd := &cobra.Command{
		Use:   "reconcile <facility-id>",
		Short: "Recompute a producer's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			l, err := a.bank.Reconcile(cmd.Context(), fid, batterybank.ProducerGrant(producerID))
			if err != nil {
				return err
			}
			return a.print(l)
		},
	}
	cmd.Flags().StringVar(&producerID, "producer", "", "producer identity")
	_ = cmd.MarkFlagRequired("producer")
	return cmd
}

func (a *app) ledgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect producer ledgers",
	}

	var producerID string
	show := &cobra.Command{
		Use:   "show <facility-id>",
		Short: "Show a producer's ledger and transaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			l, err := a.bank.GetLedger(cmd.Context(), fid, producerID)
			if err != nil {
				return err
			}
			return a.print(l)
		},
	}
	show.Flags().StringVar(&producerID, "producer", "", "producer identity")
	_ = show.MarkFlagRequired("producer")

	var listOpts producer.ListOpts
	list := &cobra.Command{
		Use:   "list <facility-id>",
		Short: "List a facility's ledgers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := parseFacility(args[0])
			if err != nil {
				return err
			}
			ls, err := a.bank.ListLedgers(cmd.Context(), fid, listOpts)
			if err != nil {
				return err
			}
			return a.print(ls)
		},
	}
	list.Flags().IntVar(&listOpts.Limit, "limit", 0, "maximum results")
	list.Flags().IntVar(&listOpts.Offset, "offset", 0, "results to skip")

	cmd.AddCommand(show, list)
	return cmd
}
