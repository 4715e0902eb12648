package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "emotune",
	Short: "Fine-tune, evaluate and publish emotion text classifiers",
	Long:  longDescription,

	SilenceUsage: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initUIAndBanner(cmd)
	},

	// When invoked without a subcommand, show help (with banner) instead of
	// printing a plain usage output.
	RunE: func(cmd *cobra.Command, args []string) error {
		initUIAndBanner(cmd)
		return cmd.Help()
	},
}

var (
	cfgFile          string
	version          string
	logLevel         string
	hfMode           string
	hubToken         string
	hubTimeoutSec    int
	hubEndpoint      string
	datasetsEndpoint string
	runsDB           string
)

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetRootCmd returns the root command for use with fang
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.emotune.yaml or ./config/defaults.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: quiet|standard|debug")
	pf.StringVar(&hfMode, "hf-mode", "", "Hub access mode: online|dummy (dummy uses the bundled sample data and no network)")
	pf.StringVar(&hubToken, "hub-token", "", "Hugging Face access token")
	pf.IntVar(&hubTimeoutSec, "hub-timeout", 0, "HTTP timeout in seconds for hub calls")
	pf.StringVar(&hubEndpoint, "hub-endpoint", "", "Hub base URL (default https://huggingface.co)")
	pf.StringVar(&datasetsEndpoint, "datasets-endpoint", "", "Datasets-server base URL (default https://datasets-server.huggingface.co)")

	pf.StringVar(&runsDB, "runs-db", "", "Run registry database (default $HOME/.emotune/runs.db)")

	viper.BindPFlag("log-level", pf.Lookup("log-level"))
	viper.BindPFlag("hf-mode", pf.Lookup("hf-mode"))
	viper.BindPFlag("hub-token", pf.Lookup("hub-token"))
	viper.BindPFlag("hub-timeout", pf.Lookup("hub-timeout"))
	viper.BindPFlag("hub-endpoint", pf.Lookup("hub-endpoint"))
	viper.BindPFlag("datasets-endpoint", pf.Lookup("datasets-endpoint"))
	viper.BindPFlag("runs-db", pf.Lookup("runs-db"))

	// Ensure `--help` (and help subcommands) show the banner consistently.
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		initUIAndBanner(cmd)
		defaultHelp(cmd, args)
	})

	rootCmd.AddCommand(trainCmd, evaluateCmd, predictCmd, publishCmd, cardCmd, runsCmd)
}

func initConfig() {
	// Environment variables override the config file, e.g. EMOTUNE_HUB_TOKEN
	// or EMOTUNE_TRAIN_OUTPUT_DIR for train.output-dir.
	viper.SetEnvPrefix("EMOTUNE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	var err error
	notFound := &viper.ConfigFileNotFoundError{}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		err = viper.ReadInConfig()
	} else {
		home, herr := os.UserHomeDir()
		cobra.CheckErr(herr)

		viper.SetConfigType("yaml")
		viper.AddConfigPath(home)
		viper.AddConfigPath("./config")

		// Try .emotune first, then the bundled defaults.
		viper.SetConfigName(".emotune")
		err = viper.ReadInConfig()
		if err != nil && errors.As(err, notFound) {
			viper.SetConfigName("defaults")
			err = viper.ReadInConfig()
		}
	}

	switch {
	case err != nil && !errors.As(err, notFound):
		cobra.CheckErr(err)
	case err != nil:
		// The config file is optional.
	default:
		if resolveLogLevel() != "quiet" {
			configMsg := ui.Dim.Render("Using config file: ") + ui.Secondary.Render(viper.ConfigFileUsed())
			fmt.Fprintln(os.Stderr, configMsg)
		}
	}
}

const longDescription = "Fine-tune a pre-trained text encoder into a six-class emotion classifier, evaluate it, and publish it to the Hugging Face Hub with a model card and an AIBOM."

func initUIAndBanner(cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	cmd.Root().Long = ui.RenderBanner(ui.BannerASCII) + "\n" + longDescription
}
