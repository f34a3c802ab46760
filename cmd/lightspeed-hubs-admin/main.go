package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/globals"
	"github.com/tcriess/lightspeed-hubs/persistence"
	"github.com/tcriess/lightspeed-hubs/types"
)

// A very simple CLI tool for the administration of hubs and rooms. It works
// directly on the store, so hub registration done here is picked up by the
// daemon on its next load or sweep.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	log.SetFlags(0)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show hubs or rooms",
		Long:  `show is for printing hub or room information.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowHubs = &cobra.Command{
		Use:   "hubs",
		Short: "Show hubs",
		Long:  `show hubs lists all active hubs.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			hubs, err := persister.GetActiveHubs()
			if err != nil {
				globals.AppLogger.Error("could not get hubs", "error", err)
				return
			}
			h, err := json.Marshal(hubs)
			if err != nil {
				globals.AppLogger.Error("could not marshal hubs", "error", err)
				return
			}
			fmt.Println(string(h))
		},
	}
	var cmdShowHub = &cobra.Command{
		Use:   "hub [channel id]",
		Short: "Show hub",
		Long:  `show hub prints detail information about the hub with the given channel id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid channel id", "error", err)
				return
			}
			hub := types.Hub{Id: id}
			if err := persister.GetHub(&hub); err != nil {
				globals.AppLogger.Error("could not get hub", "error", err)
				return
			}
			h, err := json.Marshal(hub)
			if err != nil {
				globals.AppLogger.Error("could not marshal hub", "error", err)
				return
			}
			fmt.Println(string(h))
		},
	}
	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "Show rooms",
		Long:  `show rooms lists all tracked rooms.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			rooms, err := persister.GetRooms()
			if err != nil {
				globals.AppLogger.Error("could not get rooms", "error", err)
				return
			}
			r, err := json.Marshal(rooms)
			if err != nil {
				globals.AppLogger.Error("could not marshal rooms", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:   "room [channel id]",
		Short: "Show room",
		Long:  `show room prints detail information about the room with the given channel id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid channel id", "error", err)
				return
			}
			room := types.Room{Id: id}
			if err := persister.GetRoom(&room); err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			r, err := json.Marshal(room)
			if err != nil {
				globals.AppLogger.Error("could not marshal room", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdHub = &cobra.Command{
		Use:   "hub",
		Short: "Manage hubs",
		Long:  `hub adds, removes or configures hub channels.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdHubAdd = &cobra.Command{
		Use:   "add [channel id] [guild id]",
		Short: "Register hub",
		Long:  `hub add registers the voice channel with the given id as a hub.`,
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid channel id", "error", err)
				return
			}
			guildId, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid guild id", "error", err)
				return
			}
			hub := types.Hub{Id: id, GuildId: guildId, Active: true}
			if err := persister.StoreHub(hub); err != nil {
				globals.AppLogger.Error("could not store hub", "error", err)
				return
			}
		},
	}
	var cmdHubRemove = &cobra.Command{
		Use:   "remove [channel id]",
		Short: "Deactivate hub",
		Long:  `hub remove deactivates the hub with the given channel id. Its rooms are cleaned up by the daemon's next sweep.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid channel id", "error", err)
				return
			}
			if err := persister.DeactivateHub(id); err != nil {
				globals.AppLogger.Error("could not deactivate hub", "error", err)
				return
			}
		},
	}
	var hubPattern string
	var hubMaxRooms int
	var cmdHubConfig = &cobra.Command{
		Use:   "config [channel id]",
		Short: "Configure hub",
		Long:  `hub config updates the naming pattern and/or room cap of the hub with the given channel id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				globals.AppLogger.Error("invalid channel id", "error", err)
				return
			}
			var pattern *string
			var maxRooms *int
			if cmd.Flags().Changed("pattern") {
				pattern = &hubPattern
			}
			if cmd.Flags().Changed("max-rooms") {
				maxRooms = &hubMaxRooms
			}
			if pattern == nil && maxRooms == nil {
				globals.AppLogger.Error("nothing to update, pass --pattern and/or --max-rooms")
				return
			}
			if err := persister.UpdateHubConfig(id, pattern, maxRooms); err != nil {
				globals.AppLogger.Error("could not update hub config", "error", err)
				return
			}
		},
	}
	cmdHubConfig.Flags().StringVar(&hubPattern, "pattern", "", `room name pattern, supports {user}, {display} and {n}`)
	cmdHubConfig.Flags().IntVar(&hubMaxRooms, "max-rooms", 0, "maximum concurrent rooms, 0 is unlimited")

	var rootCmd = &cobra.Command{Use: "lightspeed-hubs-admin"}
	rootCmd.AddCommand(cmdShow)
	rootCmd.AddCommand(cmdHub)
	cmdShow.AddCommand(cmdShowHubs, cmdShowHub, cmdShowRooms, cmdShowRoom)
	cmdHub.AddCommand(cmdHubAdd, cmdHubRemove, cmdHubConfig)
	rootCmd.Execute()
}
