package repo

import (
	"context"

	"github.com/dushixiang/evotrader/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewPositionRepo(db *gorm.DB) *PositionRepo {
	return &PositionRepo{
		Repository: orz.NewRepository[models.Position, string](db),
	}
}

type PositionRepo struct {
	orz.Repository[models.Position, string]
}

// FindByTicker 查找指定交易对的持仓
func (r PositionRepo) FindByTicker(ctx context.Context, ticker string) (models.Position, error) {
	var position models.Position
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("ticker = ?", ticker).
		First(&position).Error
	return position, err
}

// ExistsByTicker 指定交易对是否已有持仓
func (r PositionRepo) ExistsByTicker(ctx context.Context, ticker string) (bool, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("ticker = ?", ticker).
		Count(&count).Error
	return count > 0, err
}
