package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"resumechat/internal/config"
)

// stubSecretReader serves canned Vault secrets for certificate store tests
type stubSecretReader struct {
	secrets map[string]*config.VaultSecret
	err     error
}

func (s *stubSecretReader) GetSecretV2(path string) (*config.VaultSecret, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.secrets[path], nil
}

func newVaultCertStore(vault SecretReader, secretPath string) *CertStore {
	cfg := &config.TLSConfig{
		Mode: "server",
		AutoReload: config.AutoReloadConfig{
			Enabled: true,
			VaultWatcher: config.VaultWatcherConfig{
				Enabled:    true,
				SecretPath: secretPath,
			},
		},
	}
	return NewCertStore(cfg, vault, nil, testLogger)
}

func TestFetchVaultCerts(t *testing.T) {
	vault := &stubSecretReader{
		secrets: map[string]*config.VaultSecret{
			"secret/data/tls": {
				Data: map[string]any{
					"cert": "cert-pem-data",
					"key":  "key-pem-data",
					"ca":   "ca-pem-data",
				},
				Version: 1,
			},
		},
	}
	store := newVaultCertStore(vault, "secret/data/tls")

	cert, key, ca, err := store.fetchVaultCerts()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cert != "cert-pem-data" {
		t.Errorf("Expected cert content, got %q", cert)
	}
	if key != "key-pem-data" {
		t.Errorf("Expected key content, got %q", key)
	}
	if ca != "ca-pem-data" {
		t.Errorf("Expected CA content, got %q", ca)
	}
}

func TestFetchVaultCertsMissingSecret(t *testing.T) {
	store := newVaultCertStore(&stubSecretReader{}, "secret/data/missing")

	_, _, _, err := store.fetchVaultCerts()
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not-found error for missing secret, got %v", err)
	}
}

func TestVaultSecretChanged(t *testing.T) {
	secret := &config.VaultSecret{
		Data:    map[string]any{"cert": "c", "key": "k"},
		Version: 1,
	}
	vault := &stubSecretReader{
		secrets: map[string]*config.VaultSecret{"secret/data/tls": secret},
	}
	store := newVaultCertStore(vault, "secret/data/tls")

	changed, err := store.vaultSecretChanged()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !changed {
		t.Error("Expected first version to register as a change")
	}

	// Same version again is not a change
	changed, err = store.vaultSecretChanged()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if changed {
		t.Error("Expected unchanged version to be ignored")
	}

	secret.Version = 2
	changed, err = store.vaultSecretChanged()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !changed {
		t.Error("Expected bumped version to register as a change")
	}
}

func TestVaultSecretChangedErrors(t *testing.T) {
	t.Run("ReadFailure", func(t *testing.T) {
		store := newVaultCertStore(&stubSecretReader{err: fmt.Errorf("vault sealed")}, "secret/data/tls")
		if _, err := store.vaultSecretChanged(); err == nil {
			t.Error("Expected error when Vault read fails")
		}
	})

	t.Run("MissingSecret", func(t *testing.T) {
		store := newVaultCertStore(&stubSecretReader{}, "secret/data/tls")
		if _, err := store.vaultSecretChanged(); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})
}

func TestCertStoreHealth(t *testing.T) {
	store := NewCertStore(&config.TLSConfig{Mode: "server"}, nil, nil, testLogger)

	t.Run("NoCertificatesLoaded", func(t *testing.T) {
		health := store.Health()
		if health["healthy"] != false {
			t.Errorf("Expected unhealthy without certificates, got %v", health["healthy"])
		}
		if _, ok := health["error"]; !ok {
			t.Error("Expected an error message")
		}
	})

	cases := []struct {
		name        string
		ttl         time.Duration
		wantHealthy bool
		wantStatus  string
	}{
		{"Expired", -time.Hour, false, "expired"},
		{"Critical", 12 * time.Hour, false, "critical"},
		{"Warning", 3 * 24 * time.Hour, true, "warning"},
		{"OK", 30 * 24 * time.Hour, true, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store.mu.Lock()
			store.notAfter = time.Now().Add(tc.ttl)
			store.mu.Unlock()

			health := store.Health()
			if health["healthy"] != tc.wantHealthy {
				t.Errorf("Expected healthy=%v, got %v", tc.wantHealthy, health["healthy"])
			}
			if health["status"] != tc.wantStatus {
				t.Errorf("Expected status %q, got %v", tc.wantStatus, health["status"])
			}
		})
	}
}

func TestLoadKeyPairRequiresMaterial(t *testing.T) {
	_, _, err := loadKeyPair(&config.TLSConfig{Mode: "server"})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected missing-material error, got %v", err)
	}
}

func TestLoadCAPoolRequiresMaterial(t *testing.T) {
	_, err := loadCAPool(&config.TLSConfig{Mode: "mutual"})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected missing-CA error, got %v", err)
	}
}
