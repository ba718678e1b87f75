package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	serverUrl string

	configSetCmd = &cobra.Command{
		Use:   "set",
		Short: "edit single CLI config entry",
		Long: "this command lets you customize a single configuration entry of " +
			"the omg CLI",
		Args: cobra.ExactArgs(2),
		RunE: configSet,
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "edit multiple CLI config entry",
		Long: "this command lets you customize multiple configuration entries " +
			"of the omg CLI",
		RunE: configInit,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "print or edit CLI configuration",
		Long: "this command lets you show or customize the configuration of " +
			"the omg CLI",
		RunE: configPrint,
	}
)

func init() {
	configInitCmd.Flags().StringVar(
		&serverUrl, "server-url", initialState()["server_url"],
		"url of the omgd daemon to connect to",
	)
	configCmd.AddCommand(configSetCmd, configInitCmd)
}

func configSet(_ *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Prevent setting anything that is not part of the state.
	if _, ok := initialState()[key]; !ok {
		return nil
	}

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)

	return nil
}

func configInit(_ *cobra.Command, _ []string) error {
	if _, err := getState(); err != nil {
		return err
	}

	if err := setState(map[string]string{
		"server_url": serverUrl,
	}); err != nil {
		return err
	}

	fmt.Println("CLI has been configured")

	return nil
}

func configPrint(_ *cobra.Command, _ []string) error {
	state, err := getState()
	if err != nil {
		return err
	}

	buf, _ := json.MarshalIndent(state, "", "   ")
	fmt.Println(string(buf))

	return nil
}
