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
)

// membersCmd prints a group's roster and optionally mutates it first.
var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Print a group conversation's roster",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, stopProfile := initClient()
		defer stopProfile()
		id := identity()
		topic := viper.GetString("topic")
		if topic == "" {
			jww.FATAL.Panicf("The --topic flag is required")
		}

		if inboxID := viper.GetString("promote"); inboxID != "" {
			if err := client.PromoteAdmin(id, topic, inboxID); err != nil {
				jww.FATAL.Panicf("Failed to promote %s: %+v", inboxID, err)
			}
		}
		if inboxID := viper.GetString("demote"); inboxID != "" {
			if err := client.RevokeAdmin(id, topic, inboxID); err != nil {
				jww.FATAL.Panicf("Failed to demote %s: %+v", inboxID, err)
			}
		}
		if inboxID := viper.GetString("remove"); inboxID != "" {
			if err := client.RemoveMembers(
				id, topic, []string{inboxID}); err != nil {
				jww.FATAL.Panicf("Failed to remove %s: %+v", inboxID, err)
			}
		}

		roster, err := client.GetMembers(id, topic)
		if err != nil {
			jww.FATAL.Panicf("Failed to get members of %s: %+v",
				topic, err)
		}

		fmt.Printf("%s (%d members):\n", topic, roster.Len())
		for _, m := range roster.Members() {
			fmt.Printf("  %s  %-11s  consent=%s\n",
				m.InboxID, m.Permission, m.Consent)
		}

		reqs, err := client.Membership().JoinRequests(id, topic)
		if err != nil {
			jww.FATAL.Panicf("Failed to get join requests: %+v", err)
		}
		if len(reqs) > 0 {
			fmt.Printf("pending join requests (%d):\n", len(reqs))
			for _, r := range reqs {
				fmt.Printf("  %s  %s (%s)\n",
					r.ID, r.RequesterInboxID, r.RequesterAddress)
			}
		}
	},
}

func init() {
	membersCmd.Flags().StringP("topic", "t", "",
		"Topic of the group conversation")
	viper.BindPFlag("topic", membersCmd.Flags().Lookup("topic"))

	membersCmd.Flags().String("promote", "",
		"Promote the inbox ID to admin before printing")
	viper.BindPFlag("promote", membersCmd.Flags().Lookup("promote"))

	membersCmd.Flags().String("demote", "",
		"Demote the inbox ID from admin before printing")
	viper.BindPFlag("demote", membersCmd.Flags().Lookup("demote"))

	membersCmd.Flags().String("remove", "",
		"Remove the inbox ID from the group before printing")
	viper.BindPFlag("remove", membersCmd.Flags().Lookup("remove"))

	rootCmd.AddCommand(membersCmd)
}
