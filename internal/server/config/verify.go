// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyPanel(&cfg.Panel); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyPanel(cfg *PanelSection) error {
	if err := verifyPort("panel.port", cfg.Port); err != nil {
		return err
	}
	if err := verifyPort("panel.ssl_port", cfg.SSLPort); err != nil {
		return err
	}
	if cfg.Port == cfg.SSLPort {
		return fmt.Errorf("panel.port and panel.ssl_port must differ (both %d)", cfg.Port)
	}

	// Key and certificate go together; one without the other cannot
	// form a usable identity.
	if (cfg.KeyPath == "") != (cfg.CrtPath == "") {
		return errors.New("panel.key_path and panel.crt_path must both be set or both be empty")
	}

	if cfg.DocumentRoot == "" {
		return errors.New("panel.document_root is required (use the default for built-in assets)")
	}

	return nil
}

func verifyPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in range 1-65535, got %d", field, port)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
	return nil
}
