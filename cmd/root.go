/*
Package cmd supports the command-line interface for the nowezdrowie utility.

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
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

var cfgFile string
var Version string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nowezdrowie",
	Short: "Nowezdrowie is a set of NFZ eWUŚ integration utilities",
	Long: `
Nowezdrowie integrates with the NFZ eWUŚ service to verify the insurance
eligibility of patients identified by PESEL number. It provides a
command-line client and a REST server proxying the underlying SOAP protocol.

See https://github.com/Zenodotos/nowezdrowie`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		warnIfHTTPProxy()
		if logfile := viper.GetString("log"); logfile != "" {
			f, err := os.OpenFile(logfile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
			if err != nil {
				log.Fatalf("fatal error: couldn't open log file ('%s'): %s", logfile, err)
			}
			log.SetOutput(f)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nowezdrowie.yaml)")

	rootCmd.PersistentFlags().String("log", "", "Log file to use")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().Bool("fake", false, "Run against canned test-environment results")
	viper.BindPFlag("fake", rootCmd.PersistentFlags().Lookup("fake"))

	// eWUŚ configuration
	rootCmd.PersistentFlags().String("ewus-endpoint", "T", "eWUŚ endpoint - (P)roduction or (T)esting")
	viper.BindPFlag("ewus-endpoint", rootCmd.PersistentFlags().Lookup("ewus-endpoint"))
	rootCmd.PersistentFlags().String("ewus-endpoint-url", "", "URL for eWUŚ endpoint (if different to default for P/T)")
	viper.BindPFlag("ewus-endpoint-url", rootCmd.PersistentFlags().Lookup("ewus-endpoint-url"))
	rootCmd.PersistentFlags().Int("ewus-timeout-seconds", 10, "Timeout for calls to the eWUŚ broker server")
	viper.BindPFlag("ewus-timeout-seconds", rootCmd.PersistentFlags().Lookup("ewus-timeout-seconds"))
	rootCmd.PersistentFlags().Int("ewus-cache-minutes", 5, "Eligibility result cache expiration in minutes, 0=no cache")
	viper.BindPFlag("ewus-cache-minutes", rootCmd.PersistentFlags().Lookup("ewus-cache-minutes"))

	// operator account store
	rootCmd.PersistentFlags().String("db", "", "PostgreSQL connection string for the operator account store")
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	rootCmd.PersistentFlags().String("secret", "", "Secret protecting stored operator passwords")
	viper.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))
}

// newApp builds an eWUŚ client from the active configuration
func newApp() *ewus.App {
	endpoint := ewus.LookupEndpoint(viper.GetString("ewus-endpoint"))
	if endpoint == ewus.UnknownEndpoint {
		log.Fatalf("unknown endpoint: %s", viper.GetString("ewus-endpoint"))
	}
	app := ewus.New(endpoint)
	app.EndpointURL = viper.GetString("ewus-endpoint-url")
	app.Fake = viper.GetBool("fake")
	app.TimeoutSeconds = viper.GetInt("ewus-timeout-seconds")
	if cacheMinutes := viper.GetInt("ewus-cache-minutes"); cacheMinutes != 0 {
		app.Cache = cache.New(time.Duration(cacheMinutes)*time.Minute, time.Duration(cacheMinutes*2)*time.Minute)
	}
	return app
}

// addCredentialFlags defines the operator credential flags shared by the
// commands that log in to the service
func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("domain", "", "Regional branch code (01-16)")
	cmd.Flags().String("login", "", "Operator login")
	cmd.Flags().String("password", "", "Operator password")
	cmd.Flags().String("type", "", "Operator type for extended domains, LEK or SWD")
	cmd.Flags().String("clinician-id", "", "Clinician identifier (idntLek) for extended domains")
	cmd.Flags().String("provider-id", "", "Provider identifier (idntSwd) for extended domains")
}

func credentialsFromFlags(cmd *cobra.Command) ewus.Credentials {
	flag := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return ewus.Credentials{
		Domain:      flag("domain"),
		Login:       flag("login"),
		Password:    flag("password"),
		Type:        ewus.OperatorType(flag("type")),
		ClinicianID: flag("clinician-id"),
		ProviderID:  flag("provider-id"),
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".nowezdrowie" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".nowezdrowie")
	}

	viper.SetEnvPrefix("NOWEZDROWIE")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// Log some important configuration variables which can cause live service failings.
// Directly use an environmental variable lookup, rather than viper, as that looks for upper case versions of the requested variable
func warnIfHTTPProxy() {
	httpProxy, exists := os.LookupEnv("http_proxy") // give warning if proxy set, to help debug connection errors in live
	if exists {
		log.Printf("warning: http proxy set to %s\n", httpProxy)
	}
	httpsProxy, exists := os.LookupEnv("https_proxy")
	if exists {
		log.Printf("warning: https proxy set to %s\n", httpsProxy)
	}
}
