package events

import (
	"os"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the variable pointing at the events YAML file.
const EnvConfig = "DOCMETA_EVENTS_CONFIG"

// LoadConfig reads YAML from file path. If path is empty, returns zero value.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	return c, err
}

// BuildSinks builds every enabled sink of c. A sink that fails to start is
// reported and skipped.
func (c Config) BuildSinks() ([]Sink, []error) {
	var (
		sinks []Sink
		errs  []error
	)
	if wh := NewWebhookSink(c.Sinks.Webhook); wh != nil {
		sinks = append(sinks, wh)
	}
	if rs, err := NewRedisSink(c.Sinks.Redis); err != nil {
		errs = append(errs, err)
	} else if rs != nil {
		sinks = append(sinks, rs)
	}
	if ks, err := NewKafkaSink(c.Sinks.Kafka); err != nil {
		errs = append(errs, err)
	} else if ks != nil {
		sinks = append(sinks, ks)
	}
	return sinks, errs
}
