package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shark/services/lending/client"
)

func newInstantiateCmd(flags *globalFlags) *cobra.Command {
	var admin, fundsDenom, collateralDenom string
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Configure the lending pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Instantiate(ctx, admin, fundsDenom, collateralDenom)
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "admin address (defaults to the sender)")
	cmd.Flags().StringVar(&fundsDenom, "funds-denom", "", "denom lent out by the pool")
	cmd.Flags().StringVar(&collateralDenom, "collateral-denom", "", "pool share denom accepted as collateral (gamm/pool/<id>)")
	_ = cmd.MarkFlagRequired("funds-denom")
	_ = cmd.MarkFlagRequired("collateral-denom")
	return cmd
}

func newSupplyFundsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "supply-funds <coin>",
		Short: "Deposit funds into the pool, e.g. 200usdc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coin, err := parseCoin(args[0])
			if err != nil {
				return err
			}
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.SupplyFunds(ctx, coin)
			})
		},
	}
}

func newSupplyCollateralCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "supply-collateral <coin>",
		Short: "Post pool shares as collateral, e.g. 15gamm/pool/1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coin, err := parseCoin(args[0])
			if err != nil {
				return err
			}
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.SupplyCollateral(ctx, coin)
			})
		},
	}
}

func newBorrowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <amount>",
		Short: "Borrow funds against posted collateral",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Borrow(ctx, args[0])
			})
		},
	}
}

func newMintCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mint <address> <coins>",
		Short: "Credit coins to an account (admin only), e.g. 200usdc,500uosmo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coins, err := parseCoins(args[1])
			if err != nil {
				return err
			}
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Mint(ctx, args[0], coins)
			})
		},
	}
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	query := &cobra.Command{
		Use:   "query",
		Short: "Read pool and account state",
	}
	simple := func(use, short string, fn func(context.Context, *client.Client) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, flags, fn)
			},
		}
	}
	byAddress := func(use, short string, fn func(context.Context, *client.Client, string) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <address>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
					return fn(ctx, c, args[0])
				})
			},
		}
	}
	query.AddCommand(
		simple("config", "Show the pool configuration", func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.Config(ctx)
		}),
		simple("contract", "Show the contract name and version", func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.Contract(ctx)
		}),
		simple("pool", "Show available and used liquidity", func(ctx context.Context, c *client.Client) (interface{}, error) {
			return c.Pool(ctx)
		}),
		byAddress("lender", "Show a lender deposit", func(ctx context.Context, c *client.Client, addr string) (interface{}, error) {
			return c.Lender(ctx, addr)
		}),
		byAddress("borrower", "Show a borrower position", func(ctx context.Context, c *client.Client, addr string) (interface{}, error) {
			return c.Borrower(ctx, addr)
		}),
		byAddress("capacity", "Show how much more an address may borrow", func(ctx context.Context, c *client.Client, addr string) (interface{}, error) {
			return c.Capacity(ctx, addr)
		}),
		byAddress("balances", "Show bank balances", func(ctx context.Context, c *client.Client, addr string) (interface{}, error) {
			return c.Balances(ctx, addr)
		}),
		byAddress("locks", "Show collateral locks", func(ctx context.Context, c *client.Client, addr string) (interface{}, error) {
			return c.Locks(ctx, addr)
		}),
	)
	return query
}

func newActionsCmd(flags *globalFlags) *cobra.Command {
	var sender, action string
	var limit int
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List journaled actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("limit must not be negative")
			}
			return run(cmd, flags, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Actions(ctx, sender, action, limit)
			})
		},
	}
	cmd.Flags().StringVar(&sender, "by", "", "only actions sent by this address")
	cmd.Flags().StringVar(&action, "action", "", "only this action, e.g. borrow")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}
