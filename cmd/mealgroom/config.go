package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kitchenops/mealgroom/internal/config"
	"github.com/kitchenops/mealgroom/internal/userconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persistent settings",
	Long: `Read and write settings stored in the config file. Environment
variables always take precedence over the file.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all configurable keys and their current values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, userCfg, err := openUserConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n\n", path)
		keys := userconfig.AvailableKeys()
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			value, _ := userCfg.Get(k)
			fmt.Printf("%-22s %-12s %s\n", k, value, keys[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, userCfg, err := openUserConfig()
		if err != nil {
			return err
		}
		value, ok := userCfg.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown config key: %s", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, userCfg, err := openUserConfig()
		if err != nil {
			return err
		}
		if err := userCfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := userCfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

// openUserConfig locates and loads the config file without requiring the
// server credentials, so `mealgroom config` works before MEALIE_URL is set.
func openUserConfig() (string, *userconfig.Config, error) {
	home, err := config.HomeDir()
	if err != nil {
		return "", nil, err
	}
	path := config.FileIn(home)
	userCfg, err := userconfig.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, userCfg, nil
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
