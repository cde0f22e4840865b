package paragon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/deploy"
	"github.com/mwiater/paragon/internal/engine"
	"github.com/mwiater/paragon/internal/export"
)

func runServe(cmd *cobra.Command) error {
	cfg := GetConfig()

	model, _ := cmd.Flags().GetString("model-name")
	engineDir, _ := cmd.Flags().GetString("engine-dir")
	addr, _ := cmd.Flags().GetString("addr")
	if cfg != nil {
		if engineDir == "" {
			engineDir = filepath.Join(cfg.EngineRoot(), model)
		}
		if addr == "" {
			addr = cfg.DeployAddress()
		}
	}

	if !export.Exists(engineDir) {
		return fmt.Errorf("no engine build at %s, run 'paragon export' first", engineDir)
	}

	eng, err := engine.Load(engineDir)
	if err != nil {
		return err
	}
	defer eng.Close()

	server, err := deploy.New(deploy.Options{
		Engine: eng,
		Model:  model,
		Addr:   addr,
		Debug:  DebugEnabled(),
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	log.Printf("Serving %s on http://%s", model, server.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Print("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
