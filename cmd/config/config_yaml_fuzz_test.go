// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

var config, _ = os.ReadFile("test/test_config.yaml")

func FuzzToConfig(f *testing.F) {
	f.Add(config)
	f.Add([]byte(`{}`))
	f.Add([]byte(`source: {}`))
	f.Add([]byte(`metadata: {postgres: {backoff: {}}}`))
	f.Add([]byte(`instrumentation: {traces: {sample_ratio: -1}}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var yamlConfig YAMLConfig
		if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
			return
		}

		cfg, err := yamlConfig.toConfig()
		if err != nil {
			t.Logf("Expected error: %v", err)
			return
		}
		if err := cfg.validate(); err != nil {
			t.Logf("Expected error: %v", err)
		}
		if _, err := yamlConfig.Instrumentation.toOtelConfig(); err != nil {
			t.Logf("Expected error: %v", err)
		}
	})
}
