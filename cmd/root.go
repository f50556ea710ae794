////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the
// logger.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"

	"github.com/ephemeraHQ/converse-core/api"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "converse",
	Short: "Inspects consent buckets, rosters, and spam partitions",
	Args:  cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint("logLevel"), viper.GetString("log"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// initClient assembles the engine over the fixture protocol client.
// CPU profiling, when requested, runs until the returned stop function
// is called.
func initClient() (*api.Client, func()) {
	stopProfile := func() {}
	if profileOut := viper.GetString("profile-cpu"); profileOut != "" {
		f, err := os.Create(profileOut)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if err = pprof.StartCPUProfile(f); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		stopProfile = pprof.StopCPUProfile
	}

	protocolClient := initFixture(viper.GetString("fixture"))

	var kv ekv.KeyValue
	if session := viper.GetString("session"); session != "" {
		var err error
		kv, err = ekv.NewFilestore(session, viper.GetString("password"))
		if err != nil {
			jww.FATAL.Panicf("Failed to open session store: %+v", err)
		}
	} else {
		kv = ekv.MakeMemstore()
	}

	return api.NewClient(protocolClient, kv, api.GetDefaultParams()),
		stopProfile
}

// initFixture loads the fixture protocol client.
func initFixture(path string) protocol.Client {
	fc, err := protocol.NewFixtureClient(path)
	if err != nil {
		jww.FATAL.Panicf("Failed to load fixture: %+v", err)
	}
	return fc
}

// identity returns the --identity flag, fatal if unset.
func identity() string {
	id := viper.GetString("identity")
	if id == "" {
		jww.FATAL.Panicf("The --identity flag is required")
	}
	return id
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	rootCmd.PersistentFlags().UintP("logLevel", "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("logLevel"))

	rootCmd.PersistentFlags().StringP("log", "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().StringP("fixture", "f", "fixture.json",
		"Path to the protocol fixture file")
	viper.BindPFlag("fixture", rootCmd.PersistentFlags().Lookup("fixture"))

	rootCmd.PersistentFlags().StringP("identity", "i", "",
		"Identity (inbox ID) to operate as")
	viper.BindPFlag("identity", rootCmd.PersistentFlags().Lookup("identity"))

	rootCmd.PersistentFlags().StringP("session", "s", "",
		"Directory for snapshot persistence (empty keeps it in memory)")
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))

	rootCmd.PersistentFlags().StringP("password", "p", "",
		"Password for the session store")
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))

	rootCmd.PersistentFlags().String("profile-cpu", "",
		"Enable cpu profiling to this file")
	viper.BindPFlag("profile-cpu",
		rootCmd.PersistentFlags().Lookup("profile-cpu"))
}
