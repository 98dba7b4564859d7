package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const AppName = "timmy"

var envKeyReplacer = strings.NewReplacer("-", "_")

// LoadDotEnv loads .env files into the process environment. Variables that are already
// set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "could not load %s", f)
		}
		log.Debug().Str("file", f).Msg("Loaded environment file")
	}
	return nil
}

// InitViper sets up config file lookup and TIMMY_* environment variables on v. An empty
// configFile searches ., $HOME/.timmy and the user config dir for config.yaml.
func InitViper(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(AppName)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/." + AppName)

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(xdgConfigPath, AppName))
		}
	}

	err := v.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return errors.Wrap(err, "could not read config file")
	}

	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	return nil
}
