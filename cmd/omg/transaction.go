package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	txOwner        string
	txPaymentsJSON []string
	txFeeCurrency  string
	txFeeAmount    uint64
	txMetadata     string

	txCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "draft a transaction funding the given payments",
		Long: "this command lets you draft a transaction funding the given " +
			"payments ({owner, currency, amount}), leave a payment owner empty " +
			"to only find out which utxos would fund it",
		RunE: txCreate,
	}
	txFindFundsCmd = &cobra.Command{
		Use:   "find-funds",
		Short: "find the utxos that would fund the given payments",
		Long: "this command lets you find out which utxos would fund the " +
			"given payments without drafting anything nor locking any utxo",
		RunE: txFindFunds,
	}
	txGetCmd = &cobra.Command{
		Use:   "get",
		Short: "get info about a drafted transaction",
		Long: "this command lets you get info about a previously drafted " +
			"transaction by its txid",
		Args: cobra.ExactArgs(1),
		RunE: txGet,
	}
	txCmd = &cobra.Command{
		Use:   "transaction",
		Short: "interact with omgd transaction interface",
		Long: "this command lets you draft transactions spending your funds " +
			"and inspect previously drafted ones",
	}
)

func init() {
	txCreateCmd.Flags().StringVar(
		&txOwner, "owner", "", "address owning the funds to spend",
	)
	txCreateCmd.Flags().StringArrayVar(
		&txPaymentsJSON, "payments", nil,
		"JSON string list of payments as "+
			"{\"owner\": \"<address>\", \"currency\": \"<currency>\", \"amount\": <amount>}",
	)
	txCreateCmd.Flags().StringVar(
		&txFeeCurrency, "fee-currency", "", "currency of the fee owed to the operator",
	)
	txCreateCmd.Flags().Uint64Var(
		&txFeeAmount, "fee-amount", 0, "amount of the fee owed to the operator",
	)
	txCreateCmd.Flags().StringVar(
		&txMetadata, "metadata", "", "optional metadata blob in hex format",
	)

	txFindFundsCmd.Flags().AddFlagSet(txCreateCmd.Flags())

	txCmd.AddCommand(txCreateCmd, txFindFundsCmd, txGetCmd)
}

type payment struct {
	Owner    string `json:"owner,omitempty"`
	Currency string `json:"currency"`
	Amount   uint64 `json:"amount"`
}

func txCreate(_ *cobra.Command, _ []string) error {
	return postOrder("/v1/transactions")
}

func txFindFunds(_ *cobra.Command, _ []string) error {
	return postOrder("/v1/transactions/find-funds")
}

func postOrder(path string) error {
	payments := make([]payment, 0, len(txPaymentsJSON))
	for _, p := range txPaymentsJSON {
		pay := payment{}
		if err := json.Unmarshal([]byte(p), &pay); err != nil {
			return fmt.Errorf("invalid payment %s: %s", p, err)
		}
		payments = append(payments, pay)
	}

	body := map[string]interface{}{
		"owner":    txOwner,
		"payments": payments,
		"fee": map[string]interface{}{
			"currency": txFeeCurrency,
			"amount":   txFeeAmount,
		},
	}
	if txMetadata != "" {
		body["metadata"] = txMetadata
	}

	resp, err := postRequest(path, body)
	if err != nil {
		return err
	}

	printJSON(resp)
	return nil
}

func txGet(_ *cobra.Command, args []string) error {
	txid := args[0]

	resp, err := getRequest("/v1/transactions/" + txid)
	if err != nil {
		return err
	}

	printJSON(resp)
	return nil
}
