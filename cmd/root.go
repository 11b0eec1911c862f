// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-geospatial/featureserv/backend"
	"github.com/go-geospatial/featureserv/common"
	"github.com/go-geospatial/featureserv/conformance"
	"github.com/go-geospatial/featureserv/middleware"
	"github.com/go-geospatial/featureserv/router"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "featureserv",
	Short: "Serve OGC API Features",
	Long:  `featureserv implements the OGC API Features core over a pluggable storage backend`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		common.SetupLogging()
		log.Info().Msg("initialized logging")

		// fail fast when the backend is unreachable
		store := backend.GetInstance(ctx)
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("storage backend ping failed")
		}
		log.Info().Msg("successfully connected to storage backend")

		// the registry is immutable after this point
		registry := conformance.Active()
		log.Info().Strs("classes", registry.Classes()).Msg("conformance classes selected")

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			err := app.ShutdownWithTimeout(time.Second * 5)
			if err != nil {
				log.Fatal().Err(err).Msg("app shutdown failed")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Accept, Accept-Encoding, Accept-Language, Authorization, Content-Type, Content-Length, ETag, If-Match, Origin, X-Requested-With",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}
		app.Use(cors.New(corsConfig))

		// cache only the documents that never change after startup
		app.Use(cache.New(cache.Config{
			Next: func(c *fiber.Ctx) bool {
				path := c.Path()
				return path != "/api" && path != "/conformance"
			},
			Expiration:   30 * time.Minute,
			CacheControl: true,
		}))

		// compression
		app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed, // 1
		}))

		// Propagate request lifecycle to the backend
		app.Use(middleware.RequestContext())

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Add timing headers
		app.Use(middleware.Timer())

		prometheus := fiberprometheus.New("featureserv")
		prometheus.RegisterAt(app, "/metrics")
		app.Use(prometheus.Middleware)

		// Setup routes
		router.SetupRoutes(app)

		err := app.Listen(":" + viper.GetString("server.port"))
		if err != nil {
			log.Fatal().Err(err).Msg("app.Listen returned an error")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/featureserv.toml)")

	// server flags

	if err := viper.BindEnv("server.port", "PORT"); err != nil {
		log.Panic().Err(err).Msg("could not bind PORT")
	}
	rootCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	if err := viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port")); err != nil {
		log.Panic().Err(err).Msg("could not bind port")
	}

	// Logging configuration
	if err := viper.BindEnv("log.level", "LOG_LEVEL"); err != nil {
		log.Panic().Err(err).Msg("could not bind LOG_LEVEL")
	}
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Panic().Err(err).Msg("could not bind log-level")
	}

	if err := viper.BindEnv("log.report_caller", "LOG_REPORT_CALLER"); err != nil {
		log.Panic().Err(err).Msg("could not bind LOG_REPORT_CALLER")
	}
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	if err := viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller")); err != nil {
		log.Panic().Err(err).Msg("could not bind log-report-caller")
	}

	if err := viper.BindEnv("log.output", "LOG_OUTPUT"); err != nil {
		log.Panic().Err(err).Msg("could not bind LOG_OUTPUT")
	}
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	if err := viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output")); err != nil {
		log.Panic().Err(err).Msg("could not bind log-output")
	}

	// storage backend
	if err := viper.BindEnv("backend.kind", "BACKEND"); err != nil {
		log.Panic().Err(err).Msg("could not bind BACKEND")
	}
	rootCmd.PersistentFlags().String("backend", "memory", "Storage backend, one of: memory, postgres")
	if err := viper.BindPFlag("backend.kind", rootCmd.PersistentFlags().Lookup("backend")); err != nil {
		log.Panic().Err(err).Msg("could not bind backend.kind")
	}

	if err := viper.BindEnv("database.dsn", "DSN"); err != nil {
		log.Panic().Err(err).Msg("could not bind DSN")
	}
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL connection string")
	if err := viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("dsn")); err != nil {
		log.Panic().Err(err).Msg("could not bind database.dsn")
	}

	// conformance extensions
	if err := viper.BindEnv("extensions.enabled", "EXTENSIONS"); err != nil {
		log.Panic().Err(err).Msg("could not bind EXTENSIONS")
	}
	rootCmd.PersistentFlags().StringSlice("extensions",
		conformance.DefaultExtensions(),
		fmt.Sprintf("Enabled conformance extensions (default %s)", strings.Join(conformance.DefaultExtensions(), ",")))
	if err := viper.BindPFlag("extensions.enabled", rootCmd.PersistentFlags().Lookup("extensions")); err != nil {
		log.Panic().Err(err).Msg("could not bind extensions.enabled")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name "featureserv.toml"
		viper.AddConfigPath("/etc/")
		viper.AddConfigPath(fmt.Sprintf("%s/.config", home))
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName("featureserv.toml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFile", viper.ConfigFileUsed()).Msg("Loaded config file")
	} else {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debug().Msg("no config file found; using flags and environment")
		} else {
			log.Error().Stack().Err(err).Msg("error reading config file")
			os.Exit(1)
		}
	}
}
