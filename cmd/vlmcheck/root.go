package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vlmcheck/internal/config"
	"vlmcheck/internal/logging"
	"vlmcheck/internal/verifier"
	"vlmcheck/internal/vlm"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	logJSON    bool

	settings config.Settings
	log      zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vlmcheck",
		Short:         "Verify whether an image matches a task description using a vision-language model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (yaml, json or toml); defaults to VLMCHECK_CONFIG")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file applied beneath the process environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: DEBUG|INFO|WARNING|ERROR (defaults LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Emit JSON logs (defaults LOG_JSON)")

	root.AddCommand(newServeCmd(a), newVerifyCmd(a), newPingCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	s, err := config.NewProvider(config.Options{ConfigPath: a.configPath, EnvFile: a.envFile}).Get()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		s.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		s.LogJSON = a.logJSON
	}
	a.settings = s
	a.log = logging.New(cmd.ErrOrStderr(), s.LogLevel, s.LogJSON)
	return nil
}

// newClient builds the upstream client from settings.
func (a *app) newClient() *vlm.Client {
	s := a.settings
	return vlm.New(vlm.Config{
		BaseURL:    s.VLMBaseURL,
		APIKey:     s.VLMAPIKey,
		Timeout:    s.VLMTimeout,
		MaxRetries: s.VLMMaxRetries,
	}, logging.Component(a.log, "vlm"))
}

// newVerifier wires the pipeline on top of client.
func (a *app) newVerifier(client *vlm.Client) *verifier.Verifier {
	s := a.settings
	return verifier.New(client, verifier.Config{
		Model:         s.VLMModelName,
		MaxConcurrent: s.MaxConcurrentRequests,
		QueueTimeout:  s.QueueTimeout,
		DetectMIME:    s.DetectMIME,
	}, a.log)
}
