////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// bucketsCmd prints the identity's consent buckets.
var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Print the identity's allowed, unknown, and denied buckets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, stopProfile := initClient()
		defer stopProfile()
		id := identity()

		if topic := viper.GetString("allow"); topic != "" {
			if err := client.SetConsent(id, topic,
				protocol.ConsentAllowed); err != nil {
				jww.FATAL.Panicf("Failed to allow %s: %+v", topic, err)
			}
		}
		if topic := viper.GetString("deny"); topic != "" {
			if err := client.SetConsent(id, topic,
				protocol.ConsentDenied); err != nil {
				jww.FATAL.Panicf("Failed to deny %s: %+v", topic, err)
			}
		}

		for _, bucket := range []struct {
			name string
			get  func(string) ([]protocol.Conversation, error)
		}{
			{"allowed", client.GetAllowed},
			{"unknown", client.GetUnknown},
			{"denied", client.GetDenied},
		} {
			list, err := bucket.get(id)
			if err != nil {
				jww.FATAL.Panicf("Failed to get %s bucket: %+v",
					bucket.name, err)
			}
			fmt.Printf("%s (%d):\n", bucket.name, len(list))
			for _, c := range list {
				fmt.Printf("  %s  %-6s  %s\n", c.Topic, c.Kind, c.Name)
			}
		}
	},
}

func init() {
	bucketsCmd.Flags().String("allow", "",
		"Set the topic's consent to allowed before printing")
	viper.BindPFlag("allow", bucketsCmd.Flags().Lookup("allow"))

	bucketsCmd.Flags().String("deny", "",
		"Set the topic's consent to denied before printing")
	viper.BindPFlag("deny", bucketsCmd.Flags().Lookup("deny"))

	rootCmd.AddCommand(bucketsCmd)
}
