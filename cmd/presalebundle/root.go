package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
	"github.com/ligun0805/presale-bundle/internal/config"
)

var (
	cfgFile  string
	settings config.Settings
	logger   *logrus.Logger
	v        *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "presalebundle",
	Short: "Enable a presale and buy into it atomically via a Flashbots bundle",
	Long: `presalebundle builds two dependent transactions, enablePresale() from the
contract owner followed by presale(quantity), signs them, sends them to a
Flashbots relay as one bundle for the next block and watches for inclusion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadConfigFile()
		settings = config.Load(v)
		initLogger(settings.LogLevel)
		return nil
	},
}

func init() {
	v = viper.New()

	defaults := bundlecore.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("rpc-url", "", "Execution layer JSON-RPC URL")
	rootCmd.PersistentFlags().String("private-key", "", "Owner private key (hex); prompted for when empty")
	rootCmd.PersistentFlags().String("contract-address", "", "Presale contract address")
	rootCmd.PersistentFlags().String("chain-id", "", "Chain id (read from the node when empty)")
	rootCmd.PersistentFlags().String("relay-url", config.DefaultRelayURL, "Flashbots relay URL")
	rootCmd.PersistentFlags().String("flashbots-auth-pk", "", "Relay identity key (hex); ephemeral when empty")
	rootCmd.PersistentFlags().Duration("block-interval", defaults.BlockInterval, "Delay between inclusion polls")
	rootCmd.PersistentFlags().Int("max-wait-blocks", defaults.MaxWaitBlocks, "Inclusion polls before giving up")
	rootCmd.PersistentFlags().String("gas-premium", bundlecore.DefaultGasPremium, "Fraction added to the node gas price")
	rootCmd.PersistentFlags().Uint64("admin-gas-limit", defaults.AdminGasLimit, "Gas limit of enablePresale()")
	rootCmd.PersistentFlags().Uint64("presale-gas-limit", defaults.PresaleGasLimit, "Gas limit of presale()")
	rootCmd.PersistentFlags().String("unit-price-wei", defaults.UnitPrice.String(), "Presale price per unit in wei")
	rootCmd.PersistentFlags().String("quantity", defaults.Quantity.String(), "Units to buy")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultTimeout, "Overall run timeout")
	rootCmd.PersistentFlags().String("pushgateway-url", "", "Prometheus Pushgateway URL (disabled when empty)")
	rootCmd.PersistentFlags().Int("netcheck-blocks", 100, "Blocks of fee history shown by status")

	// keys use underscores so flags, env and the config file share one name
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			panic(err)
		}
	})

	rootCmd.AddCommand(runCmd, statusCmd, simulateCmd)
}

func initLogger(levelStr string) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}

func loadConfigFile() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("presalebundle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.presalebundle")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithError(err).Warn("Error reading config file")
		}
	}
}
