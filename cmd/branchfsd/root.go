package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parasource/branchfs/internal/config"
	"github.com/parasource/branchfs/internal/disk"
	"github.com/parasource/branchfs/internal/disk/filedisk"
	"github.com/parasource/branchfs/internal/disk/redisdisk"
	"github.com/parasource/branchfs/internal/logging"
	"github.com/parasource/branchfs/internal/server"
)

var v = viper.New()

var configPath string

func init() {
	config.BindFlags(rootCmd.Flags(), v)
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file, overridden by any flag also given")
}

var rootCmd = &cobra.Command{
	Use:  "branchfsd [port]",
	Args: cobra.MaximumNArgs(1),
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		conf.Port = port
	}

	log := logging.New(logging.ParseLevel(conf.LogLevel))

	credentials, err := server.ReadCredentials(os.Stdin)
	if err != nil {
		return err
	}

	d, err := openDisk(conf)
	if err != nil {
		return err
	}
	defer d.Close()

	srv, err := server.New(d, credentials, conf.Backlog, log)
	if err != nil {
		return err
	}

	return srv.Listen(conf.Port)
}

func openDisk(conf *config.Config) (disk.Device, error) {
	switch conf.DiskKind {
	case config.DiskKindRedis:
		return redisdisk.Open(redisdisk.Config{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		}, conf.DiskSize)
	default:
		return filedisk.Open(conf.DiskPath, conf.DiskSize)
	}
}
