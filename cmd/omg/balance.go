package main

import (
	"github.com/spf13/cobra"
)

var (
	balanceCmd = &cobra.Command{
		Use:   "balance",
		Short: "get the balance of an owner address",
		Long: "this command lets you get the balance of the given owner " +
			"address, grouped by currency",
		Args: cobra.ExactArgs(1),
		RunE: balanceGet,
	}

	utxoCmd = &cobra.Command{
		Use:   "utxos",
		Short: "list the utxos of an owner address",
		Long: "this command lets you list the spendable and locked utxos of " +
			"the given owner address",
		Args: cobra.ExactArgs(1),
		RunE: utxoList,
	}
)

func balanceGet(_ *cobra.Command, args []string) error {
	resp, err := getRequest("/v1/owners/" + args[0] + "/balance")
	if err != nil {
		return err
	}

	printJSON(resp)
	return nil
}

func utxoList(_ *cobra.Command, args []string) error {
	resp, err := getRequest("/v1/owners/" + args[0] + "/utxos")
	if err != nil {
		return err
	}

	printJSON(resp)
	return nil
}
