package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/internal/config"
	"github.com/omochice/peer-chat/internal/console"
	"github.com/omochice/peer-chat/internal/credentials"
	"github.com/omochice/peer-chat/internal/runner"
	"github.com/omochice/peer-chat/pkg/protocol"
)

var rootCmd = &cobra.Command{
	Use:   "peerchat",
	Short: "One-to-one chat over mutually authenticated TLS",
	Long: `peerchat connects exactly two people over a TLS channel where both sides
present a certificate signed by the same CA.

Run it without a subcommand to be asked for everything, or use 'host' and
'connect'. 'certgen' creates a CA and a peer certificate for local use.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		p := console.NewPrompter(os.Stdin, os.Stdout)
		if cfg.Name == "" {
			if cfg.Name, err = p.AskName(); err != nil {
				return err
			}
		}
		hosting, err := p.AskHosting()
		if err != nil {
			return err
		}
		cfg.Role = chat.Initiator
		if hosting {
			cfg.Role = chat.Responder
		}
		if !cmd.Flags().Changed("port") {
			if cfg.Port, err = p.AskPort(); err != nil {
				return err
			}
		}
		if !cmd.Flags().Changed("colour") && os.Getenv(config.EnvColour) == "" {
			if cfg.Colour, err = p.AskColour(); err != nil {
				return err
			}
		}
		return run(cmd, cfg, p.Reader())
	},
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Wait for one peer to connect",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd, chat.Responder)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a waiting peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRole(cmd, chat.Initiator)
	},
}

var certgenCmd = &cobra.Command{
	Use:   "certgen",
	Short: "Generate a CA and a peer certificate for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		hosts, _ := cmd.Flags().GetStringSlice("hosts")
		if !cmd.Flags().Changed("dir") {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir = cfg.CertDir()
		}

		paths, err := credentials.Generate(dir, hosts...)
		if err != nil {
			return err
		}
		fmt.Printf("Certificate : %s\n", paths.Certificate)
		fmt.Printf("Private key : %s\n", paths.PrivateKey)
		fmt.Printf("CA          : %s\n", paths.CA)
		fmt.Printf("Valid for   : %s\n", strings.Join(hosts, ", "))
		return nil
	},
}

func runRole(cmd *cobra.Command, role chat.Role) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Role = role

	p := console.NewPrompter(os.Stdin, os.Stdout)
	if cfg.Name == "" {
		if cfg.Name, err = p.AskName(); err != nil {
			return err
		}
	}
	return run(cmd, cfg, p.Reader())
}

func run(cmd *cobra.Command, cfg config.Config, in *bufio.Reader) error {
	log := newLogger(cfg.LogLevel)
	redraw := isTerminal(os.Stdout)
	log.Debug().Bool("redraw", redraw).Stringer("role", cfg.Role).Msg("starting session")

	return runner.NewRunner(cfg, in, os.Stdout, redraw, log).Run(cmd.Context())
}

// loadConfig applies the environment to the defaults and then every flag
// the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name, _ = flags.GetString("name")
	}
	if flags.Changed("colour") {
		v, _ := flags.GetString("colour")
		cfg.Colour = protocol.ParseColour(v)
	}
	if flags.Changed("addr") {
		cfg.IP, _ = flags.GetString("addr")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cert") {
		cfg.Credentials.Certificate, _ = flags.GetString("cert")
	}
	if flags.Changed("key") {
		cfg.Credentials.PrivateKey, _ = flags.GetString("key")
	}
	if flags.Changed("ca") {
		cfg.Credentials.CA, _ = flags.GetString("ca")
	}
	if flags.Changed("server-name") {
		cfg.ServerName, _ = flags.GetString("server-name")
	}
	if flags.Changed("transport") {
		cfg.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: --log-level: %w", config.ErrInvalid, err)
		}
		cfg.LogLevel = level
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize, _ = flags.GetInt("queue-size")
	}
	return cfg, cfg.Validate()
}

func newLogger(level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(os.Stderr),
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	def := config.Default()

	pf := rootCmd.PersistentFlags()
	pf.String("name", "", "Display name ($"+config.EnvName+")")
	pf.String("colour", "", "Message colour: red, green, blue, yellow, cyan, magenta ($"+config.EnvColour+")")
	pf.String("addr", def.IP, "IP address to listen on or connect to ($"+config.EnvAddr+")")
	pf.Int("port", def.Port, fmt.Sprintf("Port, %d-%d ($%s)", config.MinPort, config.MaxPort, config.EnvPort))
	pf.String("cert", def.Credentials.Certificate, "Certificate chain file ($"+config.EnvCert+")")
	pf.String("key", def.Credentials.PrivateKey, "Private key file ($"+config.EnvKey+")")
	pf.String("ca", def.Credentials.CA, "CA file used to verify the peer ($"+config.EnvCA+")")
	pf.String("server-name", "", "Name expected in the host's certificate, defaults to --addr ($"+config.EnvServerName+")")
	pf.String("transport", def.Transport, "Transport: tcp or ws ($"+config.EnvTransport+")")
	pf.String("output", def.Output, "Output: console or json ($"+config.EnvOutput+")")
	pf.String("log-level", def.LogLevel.String(), "Diagnostics level on stderr ($"+config.EnvLogLevel+")")
	pf.Int("queue-size", def.QueueSize, "Outgoing messages that may wait for the network")

	certgenCmd.Flags().String("dir", config.DefaultCertDir, "Directory to write the files to, defaults to the directory of --cert")
	certgenCmd.Flags().StringSlice("hosts", []string{config.DefaultIP, "localhost"}, "IP addresses and DNS names the certificate is valid for")

	rootCmd.AddCommand(hostCmd, connectCmd, certgenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
