package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

// testLoginCmd logs an operator in and prints the resulting session
var testLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the eWUŚ service and print the session",
	Run: func(cmd *cobra.Command, args []string) {
		app := newApp()
		outcome, err := app.Login(context.Background(), credentialsFromFlags(cmd))
		if err != nil {
			log.Fatal(err)
		}
		if outcome.Status != ewus.LoginSuccess {
			log.Printf("warning: %s", outcome.Status)
		}
		out, err := json.MarshalIndent(outcome.Session, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(out))
		app.Logout(context.Background())
	},
}

func init() {
	testCmd.AddCommand(testLoginCmd)
	addCredentialFlags(testLoginCmd)
}
