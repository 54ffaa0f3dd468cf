package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/carrackhq/carrack/internal/core/domain"
	"github.com/carrackhq/carrack/internal/shell/deployer"
	"github.com/carrackhq/carrack/internal/shell/store"
)

// settingFlags collects repeated -setting key=value flags.
type settingFlags map[string]string

func (f settingFlags) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f settingFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	f[key] = value
	return nil
}

// runDeploy performs a one-shot deployment from the command line and prints
// the resulting record as JSON.
func runDeploy(args []string) int {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	artifact := fs.String("artifact", "", "Path to the WAR or EAR file on the target node")
	contextPath := fs.String("context", "", "Context path for WAR artifacts (may contain ${VAR} macros)")
	variant := fs.String("variant", "", "Container variant (e.g. tomcat9x, wildfly31x)")
	nodeName := fs.String("node", "", "Configured node to deploy on (empty runs locally)")
	attempts := fs.Int("attempts", 0, "Retry attempts (0 uses the configured default)")
	envFile := fs.String("env-file", "", "YAML file with build environment variables")
	settings := settingFlags{}
	fs.Var(settings, "setting", "Container setting as key=value (repeatable)")
	fs.Parse(args)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)

	environment, err := loadEnvFile(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "environment error: %v\n", err)
		return ExitConfigError
	}

	var s store.Store
	if cfg.Database.DSN != "" {
		s, err = store.NewSQLiteStore(cfg.Database.DSN)
		if err != nil {
			logger.Error("failed to open deployment history", "error", err)
			return ExitDatabaseError
		}
		defer s.Close()
	}

	service := newDeployService(cfg, s, logger)
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	record, err := service.Run(ctx, deployer.Request{
		ArtifactPath: *artifact,
		ContextPath:  *contextPath,
		Variant:      *variant,
		Attempts:     *attempts,
		NodeName:     *nodeName,
		Environment:  environment,
		Settings:     settings,
	})
	if err != nil && record == nil {
		fmt.Fprintf(os.Stderr, "deploy error: %v\n", err)
		return ExitConfigError
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(record)

	if record.Status == domain.StatusFailed {
		return ExitDeployError
	}
	return ExitSuccess
}

// loadEnvFile reads a flat YAML map of build environment variables.
func loadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return env, nil
}
