package config

import (
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"linkhub/logger"
)

// RemoteSource is a watched configuration document, nacos in production.
type RemoteSource interface {
	Fetch() (string, error)
	Watch(onChange func(content string)) error
}

// ApplyRemote overlays the current remote document onto cfg.
func ApplyRemote(cfg *AppConfig, src RemoteSource) error {
	doc, err := src.Fetch()
	if err != nil {
		return err
	}
	return MergeYAML(cfg, []byte(doc))
}

// WatchLogLevel applies log.level from every new remote version. Other keys
// need a restart.
func WatchLogLevel(src RemoteSource) error {
	return src.Watch(func(content string) {
		var doc struct {
			Log struct {
				Level string `yaml:"level"`
			} `yaml:"log"`
		}
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			logger.Warn("ignoring unparsable remote config", zap.Error(err))
			return
		}
		if doc.Log.Level != "" {
			logger.SetLevel(doc.Log.Level)
			logger.Info("log level changed", zap.String("level", doc.Log.Level))
		}
	})
}
