package paragon

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/paragon/internal/catalog"
	"github.com/mwiater/paragon/internal/export"
)

func runModels(cmd *cobra.Command) error {
	cfg := GetConfig()

	path := viper.GetString("catalog")
	if path == "" && cfg != nil {
		path = cfg.CatalogFile()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}

	var hasEngine func(catalog.Entry) bool
	if cfg != nil {
		engineRoot := cfg.EngineRoot()
		hasEngine = func(entry catalog.Entry) bool {
			return export.Exists(filepath.Join(engineRoot, entry.Name))
		}
	}
	cat.List(hasEngine)
	return nil
}
