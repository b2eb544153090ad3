package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
)

// passwdCmd changes an operator's eWUŚ password
var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change an operator's eWUŚ password",
	Run: func(cmd *cobra.Command, args []string) {
		oldPassword, _ := cmd.Flags().GetString("old-password")
		newPassword, _ := cmd.Flags().GetString("new-password")
		if generate, _ := cmd.Flags().GetBool("generate"); generate {
			var err error
			newPassword, err = password.Generate(16, 4, 2, false, false)
			if err != nil {
				log.Fatalf("could not generate password: %s", err)
			}
		}
		if newPassword == "" {
			log.Fatal("specify --new-password or --generate")
		}
		app := newApp()
		changed, err := app.ChangePassword(context.Background(), credentialsFromFlags(cmd), oldPassword, newPassword)
		if err != nil {
			log.Fatal(err)
		}
		if changed {
			fmt.Printf("password changed; new password: %s\n", newPassword)
		}
	},
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	addCredentialFlags(passwdCmd)
	passwdCmd.Flags().String("old-password", "", "Current operator password")
	passwdCmd.Flags().String("new-password", "", "New operator password")
	passwdCmd.Flags().Bool("generate", false, "Generate a random new password")
}
