package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumechat/internal/config"
	"resumechat/internal/errors"
	"resumechat/internal/observability"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecretReader is the slice of the Vault client the certificate store needs
type SecretReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// CertStore owns the server's TLS key material. It loads the certificate
// pair and CA bundle at startup and keeps them fresh from two optional
// sources: fsnotify events on the certificate files and a version poll
// against a Vault KV v2 secret.
type CertStore struct {
	mu sync.RWMutex

	cfg    *config.TLSConfig
	vault  SecretReader
	om     *observability.ObservabilityManager
	logger *errors.Logger

	leaf     *tls.Certificate
	caPool   *x509.CertPool
	notAfter time.Time

	watcher      *fsnotify.Watcher
	debounce     *time.Timer
	vaultVersion int64

	stop     chan struct{}
	stopOnce sync.Once

	reloads       int64
	reloadFails   int64
	lastReload    time.Time
	lastReloadOK  bool
	lastReloadErr string
}

// NewCertStore creates a certificate store for the given TLS configuration.
// vault may be nil when Vault polling is not configured.
func NewCertStore(tlsCfg *config.TLSConfig, vault SecretReader, om *observability.ObservabilityManager, logger *errors.Logger) *CertStore {
	return &CertStore{
		cfg:    tlsCfg,
		vault:  vault,
		om:     om,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start loads the initial certificates and begins the configured watch loops
func (cs *CertStore) Start() error {
	if err := cs.reload(); err != nil {
		return fmt.Errorf("failed to load initial certificates: %w", err)
	}

	reload := cs.cfg.AutoReload
	if reload.FileWatcher.Enabled && (cs.cfg.CertFile != "" || cs.cfg.KeyFile != "" || cs.cfg.CAFile != "") {
		if err := cs.startFileWatch(); err != nil {
			return err
		}
	}

	if reload.VaultWatcher.Enabled && cs.vault != nil && reload.VaultWatcher.SecretPath != "" {
		go cs.vaultPollLoop()
		if cs.logger != nil {
			cs.logger.Info("Vault certificate polling started",
				"secret_path", reload.VaultWatcher.SecretPath,
				"poll_interval", cs.vaultPollInterval())
		}
	}

	go cs.expiryGaugeLoop()
	return nil
}

// Close stops the watch loops and releases the fsnotify watcher
func (cs *CertStore) Close() error {
	var err error
	cs.stopOnce.Do(func() {
		close(cs.stop)
		cs.mu.Lock()
		if cs.debounce != nil {
			cs.debounce.Stop()
		}
		watcher := cs.watcher
		cs.mu.Unlock()
		if watcher != nil {
			err = watcher.Close()
		}
		if cs.logger != nil {
			cs.logger.Info("Certificate store stopped")
		}
	})
	return err
}

// GetCertificate serves the current certificate during TLS handshakes
func (cs *CertStore) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cs.mu.RLock()
	leaf, notAfter := cs.leaf, cs.notAfter
	cs.mu.RUnlock()

	if leaf == nil {
		return nil, fmt.Errorf("no server certificate available")
	}
	if time.Now().After(notAfter) {
		if cs.logger != nil {
			cs.logger.LogError(fmt.Errorf("server certificate expired"),
				"Server certificate expired",
				"expiry", notAfter,
				"server_name", hello.ServerName)
		}
		return nil, fmt.Errorf("server certificate expired")
	}

	if renew := cs.cfg.AutoReload.PreemptiveRenewal; renew > 0 && time.Now().After(notAfter.Add(-renew)) {
		go cs.reloadNow("preemptive renewal window reached")
	}

	return leaf, nil
}

// VerifyPeer verifies a client certificate against the current CA pool
func (cs *CertStore) VerifyPeer(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no peer certificates provided")
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse peer certificate: %w", err)
	}

	cs.mu.RLock()
	pool := cs.caPool
	cs.mu.RUnlock()
	if pool == nil {
		return fmt.Errorf("no CA certificate pool available")
	}

	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("peer certificate verification failed: %w", err)
	}
	return nil
}

// TimeToExpiry returns how long the current certificate remains valid
func (cs *CertStore) TimeToExpiry() (time.Duration, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.notAfter.IsZero() {
		return 0, fmt.Errorf("no certificates loaded")
	}
	return time.Until(cs.notAfter), nil
}

// Health reports certificate status for the /health endpoint
func (cs *CertStore) Health() map[string]any {
	ttl, err := cs.TimeToExpiry()
	if err != nil {
		return map[string]any{
			"healthy": false,
			"error":   fmt.Sprintf("Failed to check certificate expiry: %v", err),
		}
	}

	out := map[string]any{
		"time_to_expiry":       ttl.String(),
		"time_to_expiry_hours": int(ttl.Hours()),
	}

	switch {
	case ttl <= 0:
		out["healthy"] = false
		out["status"] = "expired"
		out["message"] = "Certificate has expired"
	case ttl <= 24*time.Hour:
		out["healthy"] = false
		out["status"] = "critical"
		out["message"] = "Certificate expires within 24 hours"
	case ttl <= 7*24*time.Hour:
		out["healthy"] = true
		out["status"] = "warning"
		out["message"] = "Certificate expires within 7 days"
	default:
		out["healthy"] = true
		out["status"] = "ok"
		out["message"] = "Certificate is valid"
	}

	out["auto_reload"] = cs.reloadStatus()

	cs.mu.RLock()
	out["metrics"] = map[string]any{
		"reload_count":         cs.reloads,
		"reload_failure_count": cs.reloadFails,
		"last_reload_time":     cs.lastReload,
		"last_reload_success":  cs.lastReloadOK,
		"last_reload_error":    cs.lastReloadErr,
	}
	cs.mu.RUnlock()

	return out
}

func (cs *CertStore) reloadStatus() map[string]any {
	reload := cs.cfg.AutoReload
	status := map[string]any{
		"enabled":               reload.Enabled,
		"file_watcher_enabled":  reload.FileWatcher.Enabled,
		"vault_watcher_enabled": reload.VaultWatcher.Enabled,
	}

	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.watcher != nil {
		status["watched_files"] = cs.certFiles()
	}
	if reload.VaultWatcher.Enabled {
		status["vault_secret_path"] = reload.VaultWatcher.SecretPath
		status["vault_secret_version"] = cs.vaultVersion
	}
	return status
}

// reload loads the certificate pair and CA bundle and swaps them in
// atomically. Counters and metrics are updated on both outcomes.
func (cs *CertStore) reload() error {
	cs.mu.RLock()
	cfg := *cs.cfg
	cs.mu.RUnlock()

	leaf, notAfter, err := loadKeyPair(&cfg)
	var pool *x509.CertPool
	if err == nil && cfg.Mode == "mutual" {
		pool, err = loadCAPool(&cfg)
	}

	cs.mu.Lock()
	cs.reloads++
	if err != nil {
		cs.reloadFails++
		cs.lastReloadOK = false
		cs.lastReloadErr = err.Error()
		cs.mu.Unlock()
		cs.recordReloadMetric(false, err)
		return err
	}
	cs.leaf = leaf
	cs.notAfter = notAfter
	cs.caPool = pool
	cs.lastReload = time.Now()
	cs.lastReloadOK = true
	cs.lastReloadErr = ""
	cs.mu.Unlock()

	cs.recordReloadMetric(true, nil)
	if cs.logger != nil {
		cs.logger.Info("Certificates loaded", "expiry", notAfter)
	}
	return nil
}

func (cs *CertStore) reloadNow(reason string) {
	if cs.logger != nil {
		cs.logger.Info("Certificate reload triggered", "reason", reason)
	}
	if err := cs.reload(); err != nil && cs.logger != nil {
		cs.logger.LogError(err, "Failed to reload certificates")
	}
}

// loadKeyPair loads the server certificate and key, preferring inline
// content (Vault) over file paths, and extracts the expiry time.
func loadKeyPair(cfg *config.TLSConfig) (*tls.Certificate, time.Time, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case cfg.CertContent != "" && cfg.KeyContent != "":
		cert, err = tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	default:
		return nil, time.Time{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load server cert/key: %w", err)
	}

	var notAfter time.Time
	if len(cert.Certificate) > 0 {
		x509Cert, parseErr := x509.ParseCertificate(cert.Certificate[0])
		if parseErr != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse server certificate: %w", parseErr)
		}
		notAfter = x509Cert.NotAfter
	}
	return &cert, notAfter, nil
}

// loadCAPool loads the client CA bundle for mutual TLS
func loadCAPool(cfg *config.TLSConfig) (*x509.CertPool, error) {
	var pem []byte
	switch {
	case cfg.CAContent != "":
		pem = []byte(cfg.CAContent)
	case cfg.CAFile != "":
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pem = data
	default:
		return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}

func (cs *CertStore) certFiles() []string {
	var files []string
	for _, f := range []string{cs.cfg.CertFile, cs.cfg.KeyFile, cs.cfg.CAFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// startFileWatch watches the directories holding the certificate files.
// Watching directories instead of the files themselves catches atomic
// replacement by rename, the way cert renewal tools update files.
func (cs *CertStore) startFileWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for _, file := range cs.certFiles() {
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	cs.mu.Lock()
	cs.watcher = watcher
	cs.mu.Unlock()

	go cs.fileWatchLoop(watcher)
	if cs.logger != nil {
		cs.logger.Info("Certificate file watcher started", "files", cs.certFiles())
	}
	return nil
}

func (cs *CertStore) fileWatchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if cs.eventTouchesCert(event) {
				cs.scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if cs.logger != nil {
				cs.logger.LogError(err, "Certificate file watcher error")
			}
		case <-cs.stop:
			return
		}
	}
}

func (cs *CertStore) eventTouchesCert(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	for _, file := range cs.certFiles() {
		if event.Name == file || filepath.Base(event.Name) == filepath.Base(file) {
			return true
		}
	}
	return false
}

// scheduleReload debounces bursts of file events into one reload
func (cs *CertStore) scheduleReload() {
	delay := cs.cfg.AutoReload.FileWatcher.DebounceDelay
	if delay == 0 {
		delay = time.Second
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.debounce != nil {
		cs.debounce.Stop()
	}
	cs.debounce = time.AfterFunc(delay, func() {
		cs.reloadNow("certificate files changed")
	})
}

func (cs *CertStore) vaultPollInterval() time.Duration {
	if interval := cs.cfg.AutoReload.VaultWatcher.PollInterval; interval > 0 {
		return interval
	}
	return 5 * time.Minute
}

func (cs *CertStore) vaultPollLoop() {
	ticker := time.NewTicker(cs.vaultPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := cs.vaultSecretChanged()
			if err != nil {
				if cs.logger != nil {
					cs.logger.LogError(err, "Failed to check Vault for certificate updates")
				}
				continue
			}
			if changed {
				cs.applyVaultCerts()
			}
		case <-cs.stop:
			return
		}
	}
}

// vaultSecretChanged reports whether the Vault secret version has advanced
// past the last one seen
func (cs *CertStore) vaultSecretChanged() (bool, error) {
	secret, err := cs.vault.GetSecretV2(cs.cfg.AutoReload.VaultWatcher.SecretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read TLS secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("TLS secret not found at %s", cs.cfg.AutoReload.VaultWatcher.SecretPath)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if secret.Version > cs.vaultVersion {
		cs.vaultVersion = secret.Version
		return true, nil
	}
	return false, nil
}

// applyVaultCerts copies fresh certificate material from Vault into the
// TLS config and reloads
func (cs *CertStore) applyVaultCerts() {
	cert, key, ca, err := cs.fetchVaultCerts()
	if err != nil {
		if cs.logger != nil {
			cs.logger.LogError(err, "Failed to fetch certificate data from Vault")
		}
		return
	}

	cs.mu.Lock()
	if cert != "" {
		cs.cfg.CertContent = cert
	}
	if key != "" {
		cs.cfg.KeyContent = key
	}
	if ca != "" {
		cs.cfg.CAContent = ca
	}
	cs.mu.Unlock()

	cs.reloadNow("vault secret version changed")
}

func (cs *CertStore) fetchVaultCerts() (cert, key, ca string, err error) {
	secret, err := cs.vault.GetSecretV2(cs.cfg.AutoReload.VaultWatcher.SecretPath)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to fetch TLS data from vault: %w", err)
	}
	if secret == nil {
		return "", "", "", fmt.Errorf("TLS secret not found at %s", cs.cfg.AutoReload.VaultWatcher.SecretPath)
	}

	cert, _ = secret.Data["cert"].(string)
	key, _ = secret.Data["key"].(string)
	ca, _ = secret.Data["ca"].(string)
	return cert, key, ca, nil
}

func (cs *CertStore) recordReloadMetric(success bool, err error) {
	if cs.om == nil {
		return
	}
	metrics := cs.om.GetMetrics()
	if metrics == nil || metrics.CertReloadCount == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.Bool("success", success)}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	metrics.CertReloadCount.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	cs.recordExpiryGauge()
}

func (cs *CertStore) recordExpiryGauge() {
	if cs.om == nil {
		return
	}
	metrics := cs.om.GetMetrics()
	if metrics == nil || metrics.CertExpiryTime == nil {
		return
	}

	cs.mu.RLock()
	notAfter := cs.notAfter
	cs.mu.RUnlock()
	if notAfter.IsZero() {
		return
	}

	metrics.CertExpiryTime.Record(context.Background(), time.Until(notAfter).Seconds(),
		metric.WithAttributes(attribute.String("cert_type", "server")))
}

// expiryGaugeLoop keeps the expiry gauge fresh between reloads
func (cs *CertStore) expiryGaugeLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.recordExpiryGauge()
		case <-cs.stop:
			return
		}
	}
}
