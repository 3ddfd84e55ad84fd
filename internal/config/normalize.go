package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAMIS()
	c.normalizeAssembly()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAMIS() {
	c.AMIS.BaseURL = strings.TrimRight(strings.TrimSpace(c.AMIS.BaseURL), "/")
	if c.AMIS.BaseURL == "" {
		c.AMIS.BaseURL = defaultAMISBaseURL
	}
	c.AMIS.LoginPath = strings.TrimSpace(c.AMIS.LoginPath)
	if c.AMIS.LoginPath == "" {
		c.AMIS.LoginPath = defaultAMISLoginPath
	}
	c.AMIS.SearchPath = strings.TrimSpace(c.AMIS.SearchPath)
	if c.AMIS.SearchPath == "" {
		c.AMIS.SearchPath = defaultAMISSearchPath
	}
	c.AMIS.TemplateName = strings.TrimSpace(c.AMIS.TemplateName)
	if c.AMIS.TemplateName == "" {
		c.AMIS.TemplateName = defaultTemplateName
	}
	if c.AMIS.RequestTimeout <= 0 {
		c.AMIS.RequestTimeout = defaultRequestTimeout
	}
	if c.AMIS.DownloadAttempts <= 0 {
		c.AMIS.DownloadAttempts = defaultDownloadAttempts
	}
}

func (c *Config) normalizeAssembly() {
	c.Assembly.AppendixMarker = strings.TrimSpace(c.Assembly.AppendixMarker)
	if c.Assembly.AppendixMarker == "" {
		c.Assembly.AppendixMarker = defaultAppendixMarker
	}
	c.Assembly.SignatureAnchor = strings.TrimSpace(c.Assembly.SignatureAnchor)
	if c.Assembly.SignatureAnchor == "" {
		c.Assembly.SignatureAnchor = defaultSignatureAnchor
	}
	if c.Assembly.ImageWidthInches <= 0 {
		c.Assembly.ImageWidthInches = defaultImageWidth
	}
	if c.Assembly.SignatureWidthInches <= 0 {
		c.Assembly.SignatureWidthInches = defaultSignatureWidth
	}
	c.Assembly.OnDecodeError = strings.ToLower(strings.TrimSpace(c.Assembly.OnDecodeError))
	if c.Assembly.OnDecodeError == "" {
		c.Assembly.OnDecodeError = defaultOnDecodeError
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
