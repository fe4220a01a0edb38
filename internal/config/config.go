// Package config resolves the daemon's settings from command-line
// flags, an optional YAML file, and built-in defaults, in that order
// of precedence, layering viper over cobra/pflag.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DiskKindFile  = "file"
	DiskKindRedis = "redis"
)

var defaults = map[string]interface{}{
	"port":           0,
	"disk":           DiskKindFile,
	"disk_path":      "branchfs.img",
	"disk_size":      65536,
	"redis_addr":     "127.0.0.1:6379",
	"redis_password": "",
	"redis_db":       0,
	"backlog":        128,
	"log_level":      "info",
}

// Config is the fully resolved set of settings the daemon needs to
// start: which block device backs the filesystem, how many blocks it
// has, where to listen, and how verbosely to log.
type Config struct {
	Port int

	DiskKind string
	DiskPath string
	DiskSize uint32

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Backlog  int
	LogLevel string
}

// BindFlags registers every setting as a pflag on fs and binds it into
// v, so flags take precedence over both the config file and the
// defaults set below.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Int("port", 0, "TCP port to listen on (0 = OS-assigned)")
	fs.String("disk", DiskKindFile, "block device backend: file|redis")
	fs.String("disk-path", "branchfs.img", "path to the backing file when --disk=file")
	fs.Int("disk-size", 65536, "number of addressable blocks")
	fs.String("redis-addr", "127.0.0.1:6379", "redis address when --disk=redis")
	fs.String("redis-password", "", "redis password when --disk=redis")
	fs.Int("redis-db", 0, "redis logical database when --disk=redis")
	fs.Int("backlog", 128, "listen backlog; stored on the server but not applied, the listener uses the OS default")
	fs.String("log-level", "info", "log level: debug|info|warn|error")

	v.BindPFlag("port", fs.Lookup("port"))
	v.BindPFlag("disk", fs.Lookup("disk"))
	v.BindPFlag("disk_path", fs.Lookup("disk-path"))
	v.BindPFlag("disk_size", fs.Lookup("disk-size"))
	v.BindPFlag("redis_addr", fs.Lookup("redis-addr"))
	v.BindPFlag("redis_password", fs.Lookup("redis-password"))
	v.BindPFlag("redis_db", fs.Lookup("redis-db"))
	v.BindPFlag("backlog", fs.Lookup("backlog"))
	v.BindPFlag("log_level", fs.Lookup("log-level"))
}

// Load merges an optional YAML file at configPath into v (file values
// lose to anything already bound from flags) and returns the resolved
// Config. configPath == "" skips the file read entirely.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	disk := strings.ToLower(v.GetString("disk"))
	if disk != DiskKindFile && disk != DiskKindRedis {
		return nil, fmt.Errorf("config: unknown disk backend %q", disk)
	}

	return &Config{
		Port:          v.GetInt("port"),
		DiskKind:      disk,
		DiskPath:      v.GetString("disk_path"),
		DiskSize:      uint32(v.GetInt("disk_size")),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		Backlog:       v.GetInt("backlog"),
		LogLevel:      v.GetString("log_level"),
	}, nil
}
