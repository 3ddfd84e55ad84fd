package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAMIS(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAMIS() error {
	parsed, err := url.Parse(c.AMIS.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("amis.base_url must be an absolute URL, got %q", c.AMIS.BaseURL)
	}
	if c.AMIS.RequestTimeout <= 0 {
		return errors.New("amis.request_timeout must be positive")
	}
	if c.AMIS.DownloadAttempts <= 0 || c.AMIS.DownloadAttempts > 10 {
		return errors.New("amis.download_attempts must be between 1 and 10")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if c.Assembly.AppendixMarker == "" {
		return errors.New("assembly.appendix_marker must be set")
	}
	if c.Assembly.SignatureAnchor == "" {
		return errors.New("assembly.signature_anchor must be set")
	}
	switch c.Assembly.OnDecodeError {
	case "skip", "fail":
	default:
		return fmt.Errorf("assembly.on_decode_error must be \"skip\" or \"fail\", got %q", c.Assembly.OnDecodeError)
	}
	if c.Assembly.ImageWidthInches > 8 {
		return errors.New("assembly.image_width_inches exceeds a printable page width")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
