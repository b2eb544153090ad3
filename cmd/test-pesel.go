/*

Package cmd provides the command-line commands and actions.

Copyright © 2021 Zenodotos

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

// testPeselCmd validates a PESEL number and decodes its embedded data
var testPeselCmd = &cobra.Command{
	Use:   "pesel <identifier>",
	Short: "Validate a PESEL number and decode birth date and sex",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pesel := args[0]
		if !ewus.ValidatePESEL(pesel) {
			log.Fatalf("invalid PESEL number: %s", pesel)
		}
		birthDate, sex, err := ewus.ExtractPESEL(pesel)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("pesel: %s\nbirth date: %s\nsex: %s\n", pesel, birthDate.Format("2006-01-02"), sex)
	},
}

func init() {
	testCmd.AddCommand(testPeselCmd)
}
