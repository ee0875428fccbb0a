package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tome storage",
		Long: `Init creates the configuration and data directories, records the data
directory in config.yaml and lays out the srd/ tree.

Example:
  tome init
  tome init --data-dir ~/srd-data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return sysError("resolve data dir: %w", err)
	}

	configPath := filepath.Join(a.configDir, configFileExt)
	if err := recordDataDir(configPath, dataDir); err != nil {
		return sysError("write config: %w", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	meta, err := store.Metadata()
	if err != nil {
		_ = store.Detach()
		return sysError("read metadata: %w", err)
	}
	if err := store.Detach(); err != nil {
		return sysError("finalize storage: %w", err)
	}

	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"configDir": a.configDir,
			"dataDir":   dataDir,
			"synced":    !meta.LastSync().IsZero(),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config: %s\n", configPath)
	fmt.Fprintf(out, "Data:   %s\n", dataDir)
	if meta.LastSync().IsZero() {
		fmt.Fprintln(out, "Tome initialized. Run 'tome sync' to download the SRD.")
	} else {
		fmt.Fprintln(out, "Tome initialized.")
	}
	return nil
}

// recordDataDir writes dataDir into config.yaml unless the file already
// names one.
func recordDataDir(path, dataDir string) error {
	written, err := writeConfigIfMissing(path, dataDir)
	if err != nil || written {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg := defaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DataDir != "" {
		return nil
	}
	cfg.DataDir = dataDir
	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), out...), 0o644)
}
