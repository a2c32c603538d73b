package storage

import (
	"time"
)

// Setting 键值设置表
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

// 预定义的设置 Key
const (
	SettingKeyRecordFilters  = "record_filters"  // 录制类别 JSON 数组
	SettingKeyIgnorePatterns = "ignore_patterns" // 全局忽略规则 JSON 数组
	SettingKeyActiveReplays  = "active_replays"  // 录制 ID → 目标 ID 的 JSON 对象
)

// Recording 录制表
type Recording struct {
	ID                 uint   `gorm:"primaryKey"`
	RecordingID        string `gorm:"uniqueIndex;not null"` // 业务 ID
	Position           int    `gorm:"index"`                // 在录制列表中的顺序
	Name               string `gorm:"not null"`
	Timestamp          int64
	SourceURL          string
	EntriesJSON        string `gorm:"type:text"`
	IgnorePatternsJSON string `gorm:"type:text"`
	OriginGroupIDsJSON string `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OriginGroup 源分组表
type OriginGroup struct {
	ID           uint   `gorm:"primaryKey"`
	GroupID      string `gorm:"uniqueIndex;not null"` // 业务 ID
	Position     int    `gorm:"index"`
	Name         string
	MappingsJSON string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
