package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `endpointd Configuration File

Every value can be overridden with an environment variable: upper-case the
key path, join it with underscores and prefix ENDPOINTD_, for example
ENDPOINTD_LOGGING_LEVEL=DEBUG or ENDPOINTD_SERVER_ADDRESS=0.0.0.0:9000.`

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as a commented YAML document.
//
// The document is assembled as a yaml.Node tree rather than marshaled from
// the struct: durations come out as "30s" instead of nanosecond integers and
// each key carries its comment.
func generateYAMLWithComments(cfg *Config) (string, error) {
	srv := cfg.Server

	root := mapping(
		field("logging", "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json),\noutput (stdout, stderr or a file path)", mapping(
			field("level", "", str(cfg.Logging.Level)),
			field("format", "", str(cfg.Logging.Format)),
			field("output", "", str(cfg.Logging.Output)),
		)),
		field("server", "Endpoint server", mapping(
			field("address", "host:port to listen on; port 0 picks a free port", str(srv.Address)),
			field("max_body_size", "Largest accepted request body in bytes", num(srv.MaxBodySize)),
			field("max_header_bytes", "Largest accepted request line plus headers", num(int64(srv.MaxHeaderBytes))),
			field("read_timeout", "Per-request deadlines; a negative value disables them", str(srv.ReadTimeout.String())),
			field("write_timeout", "", str(srv.WriteTimeout.String())),
			field("shutdown_timeout", "How long shutdown waits for in-flight connections", str(srv.ShutdownTimeout.String())),
			field("acceptor_pool_size", "Concurrent accept loops", num(int64(srv.AcceptorPoolSize))),
			field("worker_pool_size", "Connections serviced at once", num(int64(srv.WorkerPoolSize))),
			field("rate_limit", "Accept throttling; requests_per_second 0 disables it", mapping(
				field("requests_per_second", "", num(int64(srv.RateLimit.RequestsPerSecond))),
				field("burst", "", num(int64(srv.RateLimit.Burst))),
			)),
		)),
		field("metrics", "Prometheus metrics, exposed through a \"metrics\" endpoint", mapping(
			field("enabled", "", boolean(cfg.Metrics.Enabled)),
		)),
		field("pid_file", "Where to write the process ID; empty disables it", str(cfg.PidFile)),
		field("endpoints", "Built-in handlers. Types: healthz {body}, varz {type, index, uuid,\nhost, extra}, metrics. URIs are matched exactly.", endpointsNode(cfg.Endpoints)),
	)

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{root},
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func endpointsNode(eps []EndpointConfig) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, ep := range eps {
		pairs := []*yaml.Node{
			field("type", "", str(ep.Type)),
			field("uri", "", str(ep.URI)),
		}
		if len(ep.Options) > 0 {
			var opts yaml.Node
			if err := opts.Encode(ep.Options); err == nil {
				pairs = append(pairs, field("options", "", &opts))
			}
		}
		seq.Content = append(seq.Content, mapping(pairs...))
	}
	return seq
}

// field is a key/value pair; mapping flattens it into a mapping node.
func field(key, comment string, value *yaml.Node) *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{{Kind: yaml.ScalarNode, Value: key, HeadComment: comment}, value},
	}
}

func mapping(fields ...*yaml.Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		m.Content = append(m.Content, f.Content...)
	}
	return m
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}

func num(v int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
}

func boolean(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
}
