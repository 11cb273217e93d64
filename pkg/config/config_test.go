package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"QBO_CLIENT_ID", "QBO_CLIENT_SECRET", "QBO_REALM_ID", "QBO_API_URL",
		"QBO_TOKEN_URL", "QBO_TOKEN_FILE", "LEDGER_DB_PATH", "CLASSIFY_RULES_FILE",
		"SERVER_ADDR", "SERVER_API_KEY", "DEBUG",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.QBO.APIURL != "https://quickbooks.api.intuit.com" {
		t.Errorf("API URL default = %q", cfg.QBO.APIURL)
	}
	if cfg.Ledger.DBPath != "./data/jobcost.db" {
		t.Errorf("db path default = %q", cfg.Ledger.DBPath)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server addr default = %q", cfg.Server.Addr)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("QBO_CLIENT_ID", "client-1")
	t.Setenv("QBO_CLIENT_SECRET", "secret-1")
	t.Setenv("QBO_REALM_ID", "realm-1")
	t.Setenv("QBO_API_URL", "https://sandbox-quickbooks.api.intuit.com")
	t.Setenv("QBO_TOKEN_URL", "https://oauth.example.test/tokens/bearer")
	t.Setenv("LEDGER_DB_PATH", "/tmp/test.db")
	t.Setenv("SERVER_API_KEY", "key-1")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.QBO.ClientID != "client-1" || cfg.QBO.ClientSecret != "secret-1" || cfg.QBO.RealmID != "realm-1" {
		t.Errorf("QBO config = %+v", cfg.QBO)
	}
	if cfg.QBO.APIURL != "https://sandbox-quickbooks.api.intuit.com" {
		t.Errorf("API URL = %q", cfg.QBO.APIURL)
	}
	if cfg.QBO.TokenURL != "https://oauth.example.test/tokens/bearer" {
		t.Errorf("token URL = %q", cfg.QBO.TokenURL)
	}
	if cfg.Ledger.DBPath != "/tmp/test.db" {
		t.Errorf("db path = %q", cfg.Ledger.DBPath)
	}
	if cfg.Server.APIKey != "key-1" {
		t.Errorf("API key = %q", cfg.Server.APIKey)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		QBO: QBOConfig{
			ClientID: "client-1",
			RealmID:  "realm-1",
		},
		Server: ServerConfig{Addr: ":8080"},
	}

	if err := cfg.Validate([]string{"qbo", "clientId"}, []string{"qbo", "realmId"}); err != nil {
		t.Errorf("Validate() with set fields: %v", err)
	}

	err := cfg.Validate(
		[]string{"qbo", "clientSecret"},
		[]string{"server", "apiKey"},
		[]string{"server", "addr"},
	)
	if err == nil {
		t.Fatal("Validate() should report missing fields")
	}
	msg := err.Error()
	if !strings.Contains(msg, "qbo.clientSecret") {
		t.Errorf("error should name qbo.clientSecret: %v", msg)
	}
	if !strings.Contains(msg, "server.apiKey") {
		t.Errorf("error should name server.apiKey: %v", msg)
	}
	if strings.Contains(msg, "server.addr") {
		t.Errorf("error should not name the set server.addr field: %v", msg)
	}
}

func TestValidateIgnoresShortPaths(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate([]string{"qbo"}); err != nil {
		t.Errorf("Validate() should skip paths shorter than two segments: %v", err)
	}
}
