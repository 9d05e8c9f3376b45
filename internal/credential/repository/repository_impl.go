package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() credentialdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *credentialdomain.AuthorizedDomain) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *credentialdomain.AuthorizedDomain) error {
	return db.WithContext(ctx).Save(record).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&credentialdomain.AuthorizedDomain{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*credentialdomain.AuthorizedDomain, error) {
	var record credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*credentialdomain.AuthorizedDomain, error) {
	var record credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Where("api_key_hash = ?", keyHash).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByPrevKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*credentialdomain.AuthorizedDomain, error) {
	var record credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Where("prev_api_key_hash = ?", keyHash).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByDomain(ctx context.Context, db *gorm.DB, domain string) (*credentialdomain.AuthorizedDomain, error) {
	var record credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Where("domain = ?", domain).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]credentialdomain.AuthorizedDomain, error) {
	var records []credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status credentialdomain.DomainStatus) ([]credentialdomain.AuthorizedDomain, error) {
	var records []credentialdomain.AuthorizedDomain
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&credentialdomain.AuthorizedDomain{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC()).Error
}
