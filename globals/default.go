package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "notalone-relay",
	Level: hclog.LevelFromString("INFO"),
})
