package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// testCheckCmd logs in, checks the eligibility of a single patient and prints
// the result
var testCheckCmd = &cobra.Command{
	Use:   "check <pesel>",
	Short: "Check the insurance eligibility of the patient with the given PESEL number",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := newApp()
		ctx := context.Background()
		if _, err := app.Login(ctx, credentialsFromFlags(cmd)); err != nil {
			log.Fatal(err)
		}
		defer app.Logout(ctx)
		result, err := app.CheckEligibility(ctx, args[0])
		if err != nil {
			log.Fatal(err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	testCmd.AddCommand(testCheckCmd)
	addCredentialFlags(testCheckCmd)
}
