/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileEnv = "TRACKER_CONFIG"
	envPrefix     = "TRACKER_"
)

type (
	variables struct {
		ServiceName  string `koanf:"service_name"`
		LoggingLevel string `koanf:"logging_level"`
		Port         string `koanf:"port"`

		CalibrationFile string `koanf:"calibration_file"`

		DbURL  string `koanf:"db_url"`
		DbName string `koanf:"db_name"`

		MqttBroker       string `koanf:"mqtt_broker"`
		MqttClientID     string `koanf:"mqtt_client_id"`
		DetectionTopic   string `koanf:"detection_topic"`
		StateTopicPrefix string `koanf:"state_topic_prefix"`

		SweepIntervalMillis int   `koanf:"sweep_interval_millis"`
		SinkQueueSize       int   `koanf:"sink_queue_size"`
		MaxBodyBytes        int64 `koanf:"max_body_bytes"`
	}
)

// AppConfig exports all config variables
var AppConfig variables

// InitConfig loads application variables: defaults first, then an optional
// YAML file named by TRACKER_CONFIG, then TRACKER_-prefixed env overrides.
func InitConfig() error {
	AppConfig = variables{
		ServiceName:         "doorway-tracker",
		LoggingLevel:        "info",
		Port:                "8080",
		CalibrationFile:     "calibration.yaml",
		DbURL:               "mongodb://127.0.0.1:27017",
		DbName:              "doorwayTracker",
		MqttClientID:        "doorway-tracker",
		DetectionTopic:      "tracker/detections",
		StateTopicPrefix:    "tracker/state",
		SweepIntervalMillis: 1000,
		SinkQueueSize:       1024,
		MaxBodyBytes:        1 << 20,
	}

	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return errors.Wrapf(err, "unable to load config file %s", path)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return errors.Wrap(err, "unable to load config environment variables")
	}

	if err := k.UnmarshalWithConf("", &AppConfig, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return errors.Wrap(err, "unable to unmarshal config variables")
	}

	if AppConfig.Port == "" {
		return errors.New("port must not be empty")
	}
	if AppConfig.CalibrationFile == "" {
		return errors.New("calibration_file must not be empty")
	}
	if AppConfig.SweepIntervalMillis <= 0 {
		return errors.New("sweep_interval_millis must be positive")
	}
	return nil
}
