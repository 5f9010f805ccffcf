package repo

import (
	"context"

	"github.com/dushixiang/evotrader/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewModelArtifactRepo(db *gorm.DB) *ModelArtifactRepo {
	return &ModelArtifactRepo{
		Repository: orz.NewRepository[models.ModelArtifact, string](db),
	}
}

type ModelArtifactRepo struct {
	orz.Repository[models.ModelArtifact, string]
}

// FindActive 查找当前激活的模型版本
func (r ModelArtifactRepo) FindActive(ctx context.Context) (models.ModelArtifact, error) {
	var artifact models.ModelArtifact
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("active = ?", true).
		First(&artifact).Error
	return artifact, err
}

// Activate 激活指定版本并取消其他版本的激活状态
func (r ModelArtifactRepo) Activate(ctx context.Context, id string) error {
	db := r.GetDB(ctx)
	if err := db.Table(r.GetTableName()).
		Where("active = ?", true).
		Update("active", false).Error; err != nil {
		return err
	}
	return db.Table(r.GetTableName()).
		Where("id = ?", id).
		Update("active", true).Error
}

// FindHistory 按训练时间倒序获取模型版本历史
func (r ModelArtifactRepo) FindHistory(ctx context.Context, limit int) ([]models.ModelArtifact, error) {
	var artifacts []models.ModelArtifact
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("trained_at DESC").
		Limit(limit).
		Find(&artifacts).Error
	return artifacts, err
}
