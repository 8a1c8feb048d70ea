package server

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"resumechat/internal/config"
	"resumechat/internal/observability"
)

// configureTLS prepares httpServer for the configured TLS mode. With
// auto-reload enabled the certificates come from a CertStore; otherwise
// they are loaded once at startup.
func (s *Server) configureTLS(httpServer *http.Server, vault SecretReader, om *observability.ObservabilityManager) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "disabled":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	case "server":
		fmt.Printf("Starting server with HTTPS (server-only TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Server-only (no client certificates required)")
	case "mutual":
		fmt.Printf("Starting server with mTLS (mutual TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Mutual (client certificates required)")
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	tlsConfig := &tls.Config{
		MinVersion:   tlsMinVersion(s.TLSConfig.MinVersion),
		CipherSuites: cipherSuiteIDs(s.TLSConfig.CipherSuites),
	}

	if s.TLSConfig.AutoReload.Enabled {
		store := NewCertStore(&s.TLSConfig, vault, om, s.Logger)
		if err := store.Start(); err != nil {
			return fmt.Errorf("failed to start certificate store: %w", err)
		}
		s.Certs = store

		tlsConfig.GetCertificate = store.GetCertificate
		if s.TLSConfig.Mode == "mutual" {
			tlsConfig.VerifyPeerCertificate = store.VerifyPeer
			tlsConfig.ClientAuth = clientAuthMode(s.TLSConfig.ClientAuthPolicy)
		}
		s.displayAutoReloadInfo()
	} else {
		cert, _, err := loadKeyPair(&s.TLSConfig)
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{*cert}

		if s.TLSConfig.Mode == "mutual" {
			pool, err := loadCAPool(&s.TLSConfig)
			if err != nil {
				return fmt.Errorf("failed to set up mTLS: %w", err)
			}
			tlsConfig.ClientCAs = pool
			tlsConfig.ClientAuth = clientAuthMode(s.TLSConfig.ClientAuthPolicy)
		}
	}

	if s.TLSConfig.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
		fmt.Println("WARNING: TLS certificate verification is disabled (insecureSkipVerify=true)")
	}
	if s.TLSConfig.ServerName != "" {
		tlsConfig.ServerName = s.TLSConfig.ServerName
	}

	httpServer.TLSConfig = tlsConfig
	return nil
}

// initializeVaultClient creates a Vault client when Vault certificate
// polling is configured
func (s *Server) initializeVaultClient() (SecretReader, error) {
	if !s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		return nil, nil
	}

	vc, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	if vc == nil {
		return nil, nil
	}
	return vc, nil
}

// displayAutoReloadInfo shows auto-reload configuration
func (s *Server) displayAutoReloadInfo() {
	fmt.Println("TLS auto-reload: ENABLED")
	if s.TLSConfig.AutoReload.FileWatcher.Enabled {
		fmt.Println("  - File watching enabled")
	}
	if s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		fmt.Println("  - Vault watching enabled")
	}
}

func tlsMinVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func clientAuthMode(policy string) tls.ClientAuthType {
	switch policy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

// cipherSuiteIDs resolves configured cipher suite names against the
// suites the runtime supports. Unknown names are skipped.
func cipherSuiteIDs(names []string) []uint16 {
	if len(names) == 0 {
		return nil
	}

	byName := make(map[string]uint16)
	for _, suite := range tls.CipherSuites() {
		byName[suite.Name] = suite.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
