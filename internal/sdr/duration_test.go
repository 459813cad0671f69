package sdr

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_YAML(t *testing.T) {
	var v struct {
		Timeout Duration `yaml:"timeout"`
	}
	if err := yaml.Unmarshal([]byte("timeout: 1.5s"), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.Timeout.Std() != 1500*time.Millisecond {
		t.Errorf("timeout = %s, want 1.5s", v.Timeout)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != "timeout: 1.5s\n" {
		t.Errorf("marshaled %q", out)
	}

	if err = yaml.Unmarshal([]byte("timeout: soon"), &v); err == nil {
		t.Error("expected an error for a malformed duration")
	}
}

func TestDuration_JSON(t *testing.T) {
	var v struct {
		Timeout Duration `json:"timeout"`
	}
	if err := json.Unmarshal([]byte(`{"timeout":"250ms"}`), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.Timeout.Std() != 250*time.Millisecond {
		t.Errorf("timeout = %s, want 250ms", v.Timeout)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"timeout":"250ms"}` {
		t.Errorf("marshaled %s", out)
	}
}
