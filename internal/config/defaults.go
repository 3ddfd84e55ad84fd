package config

const (
	defaultWorkspaceDir     = "~/.local/share/phieu/workspace"
	defaultOutputDir        = "~/phieu"
	defaultLogDir           = "~/.local/share/phieu/logs"
	defaultAMISBaseURL      = "https://amisapp.misa.vn"
	defaultAMISLoginPath    = "/auth/login"
	defaultAMISSearchPath   = "/process/execute/1/search"
	defaultTemplateName     = "Phiếu TTTT - Nhà đất"
	defaultRequestTimeout   = 30
	defaultDownloadAttempts = 3
	defaultAppendixMarker   = "Phụ lục Ảnh TSSS"
	defaultSignatureAnchor  = "Chữ ký cán bộ khảo sát"
	defaultImageWidth       = 3.0
	defaultSignatureWidth   = 2.0
	defaultOnDecodeError    = "skip"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		AMIS: AMIS{
			BaseURL:          defaultAMISBaseURL,
			LoginPath:        defaultAMISLoginPath,
			SearchPath:       defaultAMISSearchPath,
			TemplateName:     defaultTemplateName,
			RequestTimeout:   defaultRequestTimeout,
			DownloadAttempts: defaultDownloadAttempts,
		},
		Assembly: Assembly{
			AppendixMarker:       defaultAppendixMarker,
			SignatureAnchor:      defaultSignatureAnchor,
			ImageWidthInches:     defaultImageWidth,
			SignatureWidthInches: defaultSignatureWidth,
			OnDecodeError:        defaultOnDecodeError,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
