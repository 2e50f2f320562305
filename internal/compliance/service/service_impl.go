package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/compliance/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("compliance.service"),
		repo: p.Repo,
	}
}

func (s *service) AgentHistory(ctx context.Context, agentID snowflake.ID) (domain.AgentHistory, error) {
	return s.repo.AgentHistory(ctx, s.db, agentID)
}
