// internal/cli/show_config.go
package paragon

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/paragon/internal/appconfig"
)

// showConfigCmd prints the merged configuration after flag overrides.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overriden by flags accordingly.`,
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(os.Stdout, viper.ConfigFileUsed(), GetConfig(), appconfig.Config{})
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}
