package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/retrovault/amiga/cmd/amiga/fsutil"
	"github.com/retrovault/amiga/pkg/elog"
)

var (
	release = "0.0.0"
	commit  = ""
)

var log = &elog.CLI{}

var flagDebug bool
var flagVerbose bool
var flagNoColor bool

var rootCmd = &cobra.Command{
	Use:   "amiga",
	Short: "Inspect and repair Amiga disk and drive images.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {

		log.IsDebug = flagDebug || viper.GetBool("debug")
		log.IsVerbose = flagVerbose
		log.DisableColors = flagNoColor

		logrus.SetFormatter(log)
		if log.IsDebug {
			logrus.SetLevel(logrus.TraceLevel)
		}

		fsutil.SetLogger(log)
	},
}

func commandInit() {

	viper.SetEnvPrefix("AMIGA")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(home, ".amiga"))
		viper.SetConfigName("tool")
		_ = viper.ReadInConfig()
	}

	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(geometryCmd)
	rootCmd.AddCommand(partitionsCmd)
	rootCmd.AddCommand(bootblockCmd)
	rootCmd.AddCommand(convertCmd)

	fsCmd := &cobra.Command{
		Use:   "fs",
		Short: "Filesystem level operations on disk images.",
	}
	fsCmd.AddCommand(fsutil.LsCmd)
	fsCmd.AddCommand(fsutil.TreeCmd)
	fsCmd.AddCommand(fsutil.CatCmd)
	fsCmd.AddCommand(fsutil.DuCmd)
	fsCmd.AddCommand(fsutil.StatCmd)
	fsCmd.AddCommand(fsutil.CpCmd)
	fsCmd.AddCommand(fsutil.FormatCmd)
	fsCmd.AddCommand(fsutil.XrayCmd)
	fsCmd.AddCommand(fsutil.RectifyCmd)
	rootCmd.AddCommand(fsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("amiga %s %s", release, commit)
	},
}

func main() {

	commandInit()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
