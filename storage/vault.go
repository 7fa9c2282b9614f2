package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// vaultContentField is the field of the KV v2 secret holding the document.
const vaultContentField = "content"

// VaultBackend implements a storage backend using a HashiCorp Vault KV v2 mount.
// Each key is one secret under dataPath, holding the document as a string field.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend with token authentication.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "sip-provisioning")
//   - token: Vault token; when empty the client falls back to VAULT_TOKEN
//   - log: Structured logger for operational insights
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")
	if mountPath == "" {
		return nil, fmt.Errorf("%w: missing vault mount path", interfaces.ErrInvalidLocationURI)
	}

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch reads the secret stored under key.
func (b *VaultBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	secretPath, err := b.secretPath(key)
	if err != nil {
		return nil, err
	}

	secret, err := b.client.KVv2(b.mountPath).Get(ctx, secretPath)
	if errors.Is(err, api.ErrSecretNotFound) {
		b.log.Debug("Content not found in Vault", slog.String("path", secretPath))
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", secretPath),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrContentNotFound
	}

	content, ok := secret.Data[vaultContentField].(string)
	if !ok {
		b.log.Error("Invalid content format in Vault data", slog.String("path", secretPath))
		return nil, fmt.Errorf("invalid content format in Vault data")
	}

	b.log.Debug("Fetched content from Vault",
		slog.String("path", secretPath),
		slog.Duration("duration", time.Since(start)))

	return []byte(content), nil
}

// Store writes a new version of the secret stored under key.
func (b *VaultBackend) Store(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	secretPath, err := b.secretPath(key)
	if err != nil {
		return err
	}

	_, err = b.client.KVv2(b.mountPath).Put(ctx, secretPath, map[string]interface{}{
		vaultContentField: string(data),
	})
	if err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", secretPath),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Vault",
		slog.String("path", secretPath),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) secretPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return path.Join(b.dataPath, key), nil
}
