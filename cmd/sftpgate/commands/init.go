package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataexchange/sftpgate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample sftpgate configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/sftpgate/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  sftpgate init

  # Initialize with custom path
  sftpgate init --config /etc/sftpgate/config.yaml

  # Force overwrite existing config
  sftpgate init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add users and storage settings to the configuration file")
	fmt.Println("  2. Start the gateway with: sftpgate start")
	return nil
}
