package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Zenodotos/nowezdrowie/ewus"
	"github.com/Zenodotos/nowezdrowie/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts a REST server proxying the eWUŚ service",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		endpoint := ewus.LookupEndpoint(viper.GetString("ewus-endpoint"))
		if endpoint == ewus.UnknownEndpoint {
			log.Fatalf("unknown endpoint: %s", viper.GetString("ewus-endpoint"))
		}
		opts := server.Options{
			Port:           viper.GetInt("port"),
			Endpoint:       endpoint,
			EndpointURL:    viper.GetString("ewus-endpoint-url"),
			Fake:           viper.GetBool("fake"),
			TimeoutSeconds: viper.GetInt("ewus-timeout-seconds"),
			CacheMinutes:   viper.GetInt("ewus-cache-minutes"),
		}
		sv, err := server.New(opts)
		if err != nil {
			log.Fatalf("could not create server: %s", err)
		}
		if key := viper.GetString("jwt-key"); key != "" {
			issuer, err := server.NewTokenIssuer(key)
			if err != nil {
				log.Fatalf("could not read jwt key: %s", err)
			}
			sv.RegisterTokenIssuer(issuer)
		}
		if connStr := viper.GetString("db"); connStr != "" {
			st, err := server.NewAccountStore(connStr, viper.GetString("secret"))
			if err != nil {
				log.Fatalf("could not open account store: %s", err)
			}
			defer st.Close()
			sv.RegisterAccountStore(st)
		}
		log.Printf("starting REST server: port:%d cache:%dm timeout:%ds endpoint:(%s)%s fake:%v",
			opts.Port, opts.CacheMinutes, opts.TimeoutSeconds, endpoint.Name(), endpoint.BaseURL(), opts.Fake)
		if err := sv.RunServer(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().Int("port", 8080, "Port to run HTTP server")
	viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
	serveCmd.PersistentFlags().String("jwt-key", "", "PEM file with the RSA key signing bearer tokens; ephemeral if empty")
	viper.BindPFlag("jwt-key", serveCmd.PersistentFlags().Lookup("jwt-key"))
}
