package models

import (
	"time"

	"gorm.io/datatypes"
)

// ModelArtifact 模型版本
//
// 每次重训练产生一个新版本，参数以JSON持久化，
// 任意时刻至多一个版本处于激活状态。
type ModelArtifact struct {
	ID          string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	TrainedAt   time.Time      `gorm:"not null;index" json:"trained_at"`    // 训练时间
	SampleCount int            `gorm:"not null" json:"sample_count"`        // 训练样本数
	Params      datatypes.JSON `gorm:"not null" json:"params"`              // 模型参数
	Accuracy    float64        `gorm:"type:decimal(10,6)" json:"accuracy"`  // 留出集准确率
	Active      bool           `gorm:"default:false;index" json:"active"`   // 是否激活
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ModelArtifact) TableName() string {
	return "model_artifacts"
}
