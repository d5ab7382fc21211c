package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
)

// demoCommand walks a facility through a deposit, a withdrawal and a
// refused withdrawal, printing the ledger after each step.
func (a *app) demoCommand() *cobra.Command {
	var fee, amount, rate, consume uint64
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a deposit and withdrawal walkthrough",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner := batterybank.OwnerGrant("operator")
			solar := batterybank.ProducerGrant("solar-1")

			fac, err := a.bank.CreateFacility(ctx, owner, &facility.Facility{Name: "demo", StorageFee: fee})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "facility %s  owner=%s fee=%d\n", fac.ID, fac.Owner, fac.StorageFee)

			l, err := a.bank.Deposit(ctx, fac.ID, solar, amount, rate)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deposit  %d @ %d    stored=%d consumed=%d balance=%d\n",
				amount, rate, l.StoredAmount, l.ConsumedAmount, l.Balance)

			l, err = a.bank.Withdraw(ctx, fac.ID, solar, owner, consume)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "withdraw %d        stored=%d consumed=%d balance=%d\n",
				consume, l.StoredAmount, l.ConsumedAmount, l.Balance)

			over := l.StoredAmount + 1
			_, err = a.bank.Withdraw(ctx, fac.ID, solar, owner, over)
			switch {
			case errors.Is(err, batterybank.ErrInsufficientEnergy):
				fmt.Fprintf(a.out, "withdraw %d        refused: %v\n", over, err)
			case err != nil:
				return err
			default:
				return fmt.Errorf("withdrawal of %d units was not refused", over)
			}

			txs, err := a.bank.Transactions(ctx, fac.ID, solar.Subject)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "history  %d transactions\n", len(txs))
			for _, tx := range txs {
				fmt.Fprintf(a.out, "  %-8s %d at %s\n", tx.Kind, tx.Amount, tx.Timestamp.Format("15:04:05.000"))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fee, "fee", 10, "facility storage fee")
	cmd.Flags().Uint64Var(&amount, "amount", 5, "units to deposit")
	cmd.Flags().Uint64Var(&rate, "rate", 2, "consumption rate")
	cmd.Flags().Uint64Var(&consume, "consume", 3, "units to withdraw")
	return cmd
}
