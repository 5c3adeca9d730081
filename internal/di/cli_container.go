package di

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input and output
	InputFile string
	Output    string

	// Render flags
	Strategy    string
	Locale      string
	ClassName   string
	Style       string
	Sender      string
	BlockRemote bool
	Trusted     string

	// General flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, nil)
}

// ParseFlagSet registers the CLI flags on fs and parses args. A nil args
// parses os.Args.
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Input and output
	fs.StringVar(&flags.InputFile, "file", "", "Input HTML or .eml file (use stdin if not specified)")
	fs.StringVar(&flags.Output, "output", "host", "Output: fragment, document, host or json")

	// Render flags
	fs.StringVar(&flags.Strategy, "strategy", "", "Render strategy (isolated, inline); overrides config")
	fs.StringVar(&flags.Locale, "locale", "", "Message locale (en, tr); overrides config")
	fs.StringVar(&flags.ClassName, "class", "", "Class hint for the outer element")
	fs.StringVar(&flags.Style, "style", "", "Style hint for the outer element")
	fs.StringVar(&flags.Sender, "sender", "", "Sender address, used for the trusted sender check")
	fs.BoolVar(&flags.BlockRemote, "block-remote", false, "Block remote images unless the sender is trusted")
	fs.StringVar(&flags.Trusted, "trusted", "", "Comma-separated list of trusted sender domains")

	// General flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (flags still override it)")

	if args == nil {
		_ = fs.Parse(os.Args[1:])
	} else {
		_ = fs.Parse(args)
	}
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return createConfigFromFlags(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}
	return container, nil
}

// createConfigFromFlags layers command line flags over the config file or
// the defaults
func createConfigFromFlags(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	// Set some cli specific settings
	cfg.Set("server.frontend", "cli")
	cfg.Set("source.type", "none")
	cfg.Set("cache.enabled", false)
	cfg.Set("cli.input_file", flags.InputFile)
	cfg.Set("cli.output", flags.Output)
	cfg.Set("cli.strategy", flags.Strategy)
	cfg.Set("cli.class_name", flags.ClassName)
	cfg.Set("cli.style", flags.Style)
	cfg.Set("cli.sender", flags.Sender)

	if flags.Strategy != "" {
		cfg.Set("render.strategy", flags.Strategy)
	}
	if flags.Locale != "" {
		cfg.Set("render.locale", flags.Locale)
	}
	if flags.BlockRemote {
		cfg.Set("render.block_remote_images", true)
	}
	if flags.Trusted != "" {
		domains := strings.Split(flags.Trusted, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		cfg.Set("render.trusted_sender_domains", domains)
	}

	return cfg, nil
}
