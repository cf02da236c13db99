package common

import (
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

// LogEnv names the environment variable read when no level is given.
const LogEnv = "AWSHELPERS_LOG"

// InitLogger installs the apex cli handler on w and sets the level. An empty
// level falls back to $AWSHELPERS_LOG, then to info.
func InitLogger(w io.Writer, level string) {
	if TrimAndCheckEmptyString(&level) {
		level = os.Getenv(LogEnv)
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetHandler(cli.New(w))
	log.SetLevel(lvl)
}
