/*
Copyright 2020 Google LLC

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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/lastfm"
	"github.com/ademuri/outtamusic/internal/logging"
	"github.com/ademuri/outtamusic/internal/pipeline"
	"github.com/ademuri/outtamusic/internal/records"
	"github.com/ademuri/outtamusic/internal/spotify"
	"github.com/ademuri/outtamusic/internal/store"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "outtamusic",
	Short: "Compares how a group's music taste evolves",
	Long: `Collects each member's yearly "Your Top Songs" playlists into a shared
feature store, clusters the tracks year by year and summarizes how the
members relate.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.outtamusic.yaml)")

	flags := rootCmd.PersistentFlags()
	flags.StringP("database", "d", "./outtamusic.db", "Path to the SQLite database")
	flags.String("client_id", "", "Spotify client id")
	flags.String("client_secret", "", "Spotify client secret")
	flags.String("access_token", "", "Spotify user access token, needed for private playlists")
	flags.String("lastfm_api_key", "", "last.fm API key, enables the genre fallback")
	flags.String("lastfm_secret", "", "last.fm secret")
	flags.Int("extra_clusters", analysis.DefaultExtraClusters, "Clusters per year beyond one per member")
	flags.String("log_level", "info", "Log level: debug, info, warn, error")
	flags.String("log_format", "console", "Log format: console or json")
	flags.String("sendgrid_api_key", "", "SendGrid API key for email")
	flags.String("from", "", "From email address")
	for _, name := range []string{
		"database", "client_id", "client_secret", "access_token", "lastfm_api_key", "lastfm_secret",
		"extra_clusters", "log_level", "log_format", "sendgrid_api_key", "from",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
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

		// Search config in home directory with name ".outtamusic" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".outtamusic")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// See https://github.com/spf13/viper/pull/852
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			rootCmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}

func openStore() (*store.Store, error) {
	s, err := store.New(viper.GetString("database"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

func analysisOptions() analysis.Options {
	opts := analysis.DefaultOptions()
	opts.ExtraClusters = viper.GetInt("extra_clusters")
	opts.Logger = logging.Logger()
	return opts
}

// liveFetcher builds the remote fetch stack: Spotify, then the last.fm
// genre fallback when an API key is configured.
var liveFetcher = func(ctx context.Context) (records.Fetcher, error) {
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
		AccessToken:  viper.GetString("access_token"),
		Logger:       logging.Logger(),
	})
	if err != nil {
		return nil, err
	}
	if key := viper.GetString("lastfm_api_key"); key != "" {
		return lastfm.New(client, key, viper.GetString("lastfm_secret"), lastfm.Options{Logger: logging.Logger()}), nil
	}
	return client, nil
}

// newRunner puts the raw fetch cache in front of the live fetchers. With
// replay set only the cache is consulted.
func newRunner(ctx context.Context, s *store.Store, replay bool) (*pipeline.Runner, error) {
	var live records.Fetcher
	if !replay {
		var err error
		if live, err = liveFetcher(ctx); err != nil {
			return nil, err
		}
	}

	return pipeline.New(s, pipeline.Config{
		Fetchers: func(memberID string) records.Fetcher {
			return store.NewCachingFetcher(s, memberID, live)
		},
		Ingest:   records.IngestOptions{Logger: logging.Logger()},
		Analysis: analysisOptions(),
		Logger:   logging.Logger(),
	}), nil
}
