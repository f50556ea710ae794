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

	"github.com/ephemeraHQ/converse-core/protocol"
)

// spamCmd partitions the unknown bucket into spam and not-spam and prints
// both halves.
var spamCmd = &cobra.Command{
	Use:   "spam",
	Short: "Classify the unknown bucket into spam and not-spam",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, stopProfile := initClient()
		defer stopProfile()
		id := identity()

		partition, err := client.GetSpamPartitionedUnknown(id)
		if err != nil {
			jww.FATAL.Panicf(
				"Failed to partition unknown bucket: %+v", err)
		}

		fmt.Printf("not spam (%d):\n", len(partition.NotSpam))
		for _, c := range partition.NotSpam {
			fmt.Printf("  %s  %-6s  %s\n", c.Topic, c.Kind, preview(c))
		}
		fmt.Printf("spam (%d):\n", len(partition.Spam))
		for _, c := range partition.Spam {
			fmt.Printf("  %s  %-6s  %s\n", c.Topic, c.Kind, preview(c))
		}
	},
}

// preview renders a one-line summary of the conversation's last message.
func preview(c protocol.Conversation) string {
	if c.LastMessage == nil {
		return "<no messages>"
	}
	if c.LastMessage.Fallback != "" {
		return c.LastMessage.Fallback
	}
	return c.LastMessage.ContentType.String()
}

func init() {
	rootCmd.AddCommand(spamCmd)
}
