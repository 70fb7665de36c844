package config

import "os"

func IsDebug() bool {
	return os.Getenv("READR_DEBUG") == "1"
}
