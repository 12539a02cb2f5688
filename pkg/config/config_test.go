package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadYAML(t *testing.T) {
	config, err := Load("testdata/pipeline.yaml", "testdata/missing.env")
	if err != nil {
		t.Fatalf("Load error: %s", err)
	}
	if config.Region != "us-east-1" || config.Transport != "memory" || config.MaxReceives != 5 {
		t.Errorf("top level settings not loaded: %+v", config)
	}
	wantPool := PoolConfig{Workers: 4, BatchSize: 10, WaitTime: 5 * time.Second, Timeout: 20 * time.Second}
	if diff := cmp.Diff(wantPool, config.Pools.Catalog); diff != "" {
		t.Errorf("catalog pool mismatch (-want +got):\n%s", diff)
	}
	// untouched sections keep their defaults
	if config.Pools.Mailer.Timeout != 3*time.Second {
		t.Errorf("mailer timeout default lost: %s", config.Pools.Mailer.Timeout)
	}
	if diff := cmp.Diff([]string{"Caption", "Date"}, config.Metadata.Whitelist); diff != "" {
		t.Errorf("whitelist mismatch (-want +got):\n%s", diff)
	}
	if !config.Metadata.AutoCreate {
		t.Errorf("autoCreate not loaded")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate error: %s", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("IMAGEPIPE_TABLE", "ImagesTest")
	t.Setenv("IMAGEPIPE_MAX_RECEIVES", "7")
	t.Setenv("IMAGEPIPE_METADATA_WHITELIST", "Caption")
	t.Cleanup(func() {
		os.Unsetenv("SES_EMAIL_FROM")
		os.Unsetenv("SES_EMAIL_TO")
	})
	config, err := Load("", "testdata/test.env")
	if err != nil {
		t.Fatalf("Load error: %s", err)
	}
	if config.Storage.Table != "ImagesTest" || config.MaxReceives != 7 {
		t.Errorf("env overrides not applied: %+v", config)
	}
	if config.Mail.From != "env@example.com" {
		t.Errorf("dotenv file not applied: %+v", config.Mail)
	}
	if diff := cmp.Diff([]string{"a@example.com", "b@example.com"}, config.Mail.To); diff != "" {
		t.Errorf("recipients mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Caption"}, config.Metadata.Whitelist); diff != "" {
		t.Errorf("whitelist mismatch (-want +got):\n%s", diff)
	}
	if config.MailRegion() != "eu-west-1" {
		t.Errorf("mail region should fall back to region, got %s", config.MailRegion())
	}
}

func TestLoadEnvInvalidNumber(t *testing.T) {
	t.Setenv("IMAGEPIPE_MAX_RECEIVES", "three")
	if _, err := Load("", "testdata/missing.env"); err == nil {
		t.Errorf("expected error for invalid IMAGEPIPE_MAX_RECEIVES")
	}
}

func TestValidate(t *testing.T) {
	config := Default()
	err := config.Validate()
	if err == nil || !strings.Contains(err.Error(), "SES_EMAIL_FROM") {
		t.Errorf("expected missing mail settings, got: %v", err)
	}
	config.Mail.From = "album@example.com"
	config.Mail.To = []string{"owner@example.com"}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate error: %s", err)
	}
	config.Metadata.Whitelist = []string{"Caption", "Location"}
	if err := config.Validate(); err == nil || !strings.Contains(err.Error(), "Location") {
		t.Errorf("expected whitelist outside the image attributes to fail, got: %v", err)
	}
	config.Metadata.Whitelist = []string{"Date"}
	if err := config.Validate(); err != nil {
		t.Errorf("narrowed whitelist should be valid: %s", err)
	}
	config.Storage.Type = "postgres"
	if err := config.Validate(); err == nil {
		t.Errorf("expected unknown storage type to fail")
	}
}
