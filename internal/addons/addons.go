// Package addons tracks which gateway addons a satellite domain has
// registered. The registry lives in the domain's metadata blob; there is no
// separate table to keep in sync.
package addons

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/affcd/gateway/internal/clock"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const metadataKey = "addons"

type Record struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Service interface {
	Register(ctx context.Context, domainID, name, version string) (*Record, error)
	Unregister(ctx context.Context, domainID, name string) error
	Status(ctx context.Context, domainID, name string) (*Record, error)
	List(ctx context.Context, domainID string) ([]Record, error)
}

var (
	ErrInvalidName   = errors.New("invalid_addon_name")
	ErrNotRegistered = errors.New("addon_not_registered")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Credential credentialdomain.Service
}

type service struct {
	log        *zap.Logger
	clock      clock.Clock
	credential credentialdomain.Service
}

func New(p Params) Service {
	return &service{
		log:        p.Log.Named("addons.service"),
		clock:      p.Clock,
		credential: p.Credential,
	}
}

func (s *service) Register(ctx context.Context, domainID, name, version string) (*Record, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}

	record, registry, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}

	entry := Record{
		Name:         name,
		Version:      strings.TrimSpace(version),
		Status:       "active",
		RegisteredAt: s.clock.Now(),
	}
	registry[name] = map[string]any{
		"version":       entry.Version,
		"status":        entry.Status,
		"registered_at": entry.RegisteredAt.Format(time.RFC3339),
	}

	if err := s.store(ctx, record, registry); err != nil {
		return nil, err
	}

	s.log.Info("addon registered",
		zap.String("domain_id", domainID),
		zap.String("addon", name),
		zap.String("version", entry.Version),
	)
	return &entry, nil
}

func (s *service) Unregister(ctx context.Context, domainID, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	record, registry, err := s.load(ctx, domainID)
	if err != nil {
		return err
	}
	if _, ok := registry[name]; !ok {
		return ErrNotRegistered
	}
	delete(registry, name)

	if err := s.store(ctx, record, registry); err != nil {
		return err
	}

	s.log.Info("addon unregistered",
		zap.String("domain_id", domainID),
		zap.String("addon", name),
	)
	return nil
}

func (s *service) Status(ctx context.Context, domainID, name string) (*Record, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	_, registry, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	raw, ok := registry[name]
	if !ok {
		return nil, ErrNotRegistered
	}
	entry := decode(name, raw)
	return &entry, nil
}

func (s *service) List(ctx context.Context, domainID string) ([]Record, error) {
	_, registry, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(registry))
	for name, raw := range registry {
		records = append(records, decode(name, raw))
	}
	return records, nil
}

func (s *service) load(ctx context.Context, domainID string) (*credentialdomain.AuthorizedDomain, map[string]any, error) {
	record, err := s.credential.Get(ctx, domainID)
	if err != nil {
		return nil, nil, err
	}

	registry := map[string]any{}
	if record.Metadata != nil {
		if existing, ok := record.Metadata[metadataKey].(map[string]any); ok {
			for k, v := range existing {
				registry[k] = v
			}
		}
	}
	return record, registry, nil
}

func (s *service) store(ctx context.Context, record *credentialdomain.AuthorizedDomain, registry map[string]any) error {
	metadata := map[string]any{}
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata[metadataKey] = registry
	return s.credential.UpdateMetadata(ctx, record.ID.String(), metadata)
}

func decode(name string, raw any) Record {
	entry := Record{Name: name, Status: "active"}
	fields, ok := raw.(map[string]any)
	if !ok {
		return entry
	}
	if v, ok := fields["version"].(string); ok {
		entry.Version = v
	}
	if v, ok := fields["status"].(string); ok && v != "" {
		entry.Status = v
	}
	if v, ok := fields["registered_at"].(string); ok {
		if at, err := time.Parse(time.RFC3339, v); err == nil {
			entry.RegisteredAt = at
		}
	}
	return entry
}

var Module = fx.Module("addons.service",
	fx.Provide(New),
)
