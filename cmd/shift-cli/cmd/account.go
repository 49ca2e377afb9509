package cmd

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	accountEmail   string
	accountService string
)

func init() {
	addAccountCmd.Flags().StringVar(&accountEmail, "email", "", "Email of the SHiFT account.")
	addAccountCmd.Flags().StringVar(&accountService, "service", "", "Service the account redeems on (steam, psn, xboxlive, ...).")
	addAccountCmd.MarkFlagRequired("email")
	addAccountCmd.MarkFlagRequired("service")

	accountCmd.AddCommand(addAccountCmd)
	accountCmd.AddCommand(listAccountsCmd)
	accountCmd.AddCommand(removeAccountCmd)
	rootCmd.AddCommand(accountCmd)
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the SHiFT accounts codes get redeemed on.",
}

var addAccountCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account, prompting for its password.",
	Run: func(cmd *cobra.Command, args []string) {
		store := openAccounts(loadConfig())

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fatal(err)
		}

		id, err := store.AddAccount(cmd.Context(), accountEmail, string(password), accountService)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("added account %d\n", id)
	},
}

var listAccountsCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts.",
	Run: func(cmd *cobra.Command, args []string) {
		store := openAccounts(loadConfig())

		list, err := store.ListAccounts(cmd.Context())
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Email", "Service"})
		for _, account := range list {
			t.AppendRow(table.Row{account.Id, account.Email, account.Service})
		}
		t.Render()
	},
}

var removeAccountCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an account by id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openAccounts(loadConfig())

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid account id %q", args[0]))
		}
		err = store.RemoveAccount(cmd.Context(), id)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("removed account %d\n", id)
	},
}
