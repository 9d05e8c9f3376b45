package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AuthorizedDomain) error
	Update(ctx context.Context, db *gorm.DB, record *AuthorizedDomain) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AuthorizedDomain, error)
	FindByKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*AuthorizedDomain, error)
	FindByPrevKeyHash(ctx context.Context, db *gorm.DB, keyHash string) (*AuthorizedDomain, error)
	FindByDomain(ctx context.Context, db *gorm.DB, domain string) (*AuthorizedDomain, error)
	List(ctx context.Context, db *gorm.DB) ([]AuthorizedDomain, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status DomainStatus) ([]AuthorizedDomain, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
