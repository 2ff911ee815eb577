package util

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the inspected environment variables.
const EnvPrefix = "MSD" // Mock StatsD

// InitViper sets up env var handling for a viper, so that e.g. metrics-addr is read from MSD_METRICS_ADDR.
func InitViper(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()
}
