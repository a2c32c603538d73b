package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"reqreplay/pkg/model"
)

// SnapshotRepo 会话快照仓库，整体读写录制、源分组与设置
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo 创建快照仓库实例
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save 在一个事务内用快照替换全部持久化数据
func (r *SnapshotRepo) Save(ctx context.Context, p model.Persisted) error {
	recs := make([]Recording, 0, len(p.Recordings))
	for i, rec := range p.Recordings {
		row, err := toRecordingRow(i, rec)
		if err != nil {
			return err
		}
		recs = append(recs, row)
	}
	groups := make([]OriginGroup, 0, len(p.OriginGroups))
	for i, g := range p.OriginGroups {
		mappings, err := json.Marshal(g.Mappings)
		if err != nil {
			return fmt.Errorf("序列化源分组失败: %w", err)
		}
		groups = append(groups, OriginGroup{GroupID: string(g.ID), Position: i, Name: g.Name, MappingsJSON: string(mappings)})
	}
	settings, err := toSettings(p)
	if err != nil {
		return err
	}

	return r.db.GormDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Recording{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&OriginGroup{}).Error; err != nil {
			return err
		}
		if len(recs) > 0 {
			if err := tx.CreateInBatches(recs, 100).Error; err != nil {
				return err
			}
		}
		if len(groups) > 0 {
			if err := tx.CreateInBatches(groups, 100).Error; err != nil {
				return err
			}
		}
		for i := range settings {
			if err := tx.Save(&settings[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Load 按保存顺序重建快照
func (r *SnapshotRepo) Load(ctx context.Context) (model.Persisted, error) {
	db := r.db.GormDB().WithContext(ctx)
	var p model.Persisted

	var recs []Recording
	if err := db.Order("position").Find(&recs).Error; err != nil {
		return p, fmt.Errorf("读取录制失败: %w", err)
	}
	for _, row := range recs {
		rec, err := fromRecordingRow(row)
		if err != nil {
			return p, err
		}
		p.Recordings = append(p.Recordings, rec)
	}

	var groups []OriginGroup
	if err := db.Order("position").Find(&groups).Error; err != nil {
		return p, fmt.Errorf("读取源分组失败: %w", err)
	}
	for _, row := range groups {
		g := model.OriginGroup{ID: model.OriginGroupID(row.GroupID), Name: row.Name, Mappings: [][]string{}}
		gjson.Parse(row.MappingsJSON).ForEach(func(_, m gjson.Result) bool {
			g.Mappings = append(g.Mappings, stringArray(m))
			return true
		})
		p.OriginGroups = append(p.OriginGroups, g)
	}

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return p, fmt.Errorf("读取设置失败: %w", err)
	}
	p.ActiveReplays = make(map[model.RecordingID]model.TargetID)
	for _, s := range settings {
		v := gjson.Parse(s.Value)
		switch s.Key {
		case SettingKeyRecordFilters:
			if !v.IsArray() {
				continue
			}
			p.RecordFilters = []model.Kind{}
			for _, k := range stringArray(v) {
				p.RecordFilters = append(p.RecordFilters, model.Kind(k))
			}
		case SettingKeyIgnorePatterns:
			p.IgnorePatterns = stringArray(v)
		case SettingKeyActiveReplays:
			v.ForEach(func(k, t gjson.Result) bool {
				p.ActiveReplays[model.RecordingID(k.String())] = model.TargetID(t.String())
				return true
			})
		}
	}
	return p, nil
}

func toRecordingRow(pos int, rec model.Recording) (Recording, error) {
	entries := rec.Entries
	if entries == nil {
		entries = []model.Entry{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return Recording{}, fmt.Errorf("序列化录制 %s 失败: %w", rec.ID, err)
	}
	patterns, _ := json.Marshal(nonNil(rec.IgnorePatterns))
	groupIDs, _ := json.Marshal(rec.OriginGroupIDs)
	return Recording{
		RecordingID:        string(rec.ID),
		Position:           pos,
		Name:               rec.Name,
		Timestamp:          rec.Timestamp,
		SourceURL:          rec.SourceURL,
		EntriesJSON:        string(entriesJSON),
		IgnorePatternsJSON: string(patterns),
		OriginGroupIDsJSON: string(groupIDs),
	}, nil
}

func fromRecordingRow(row Recording) (model.Recording, error) {
	rec := model.Recording{
		ID:             model.RecordingID(row.RecordingID),
		Name:           row.Name,
		Timestamp:      row.Timestamp,
		SourceURL:      row.SourceURL,
		Entries:        []model.Entry{},
		IgnorePatterns: stringArray(gjson.Parse(row.IgnorePatternsJSON)),
	}
	if row.EntriesJSON != "" {
		if !gjson.Valid(row.EntriesJSON) {
			return rec, fmt.Errorf("录制 %s 的条目数据损坏", row.RecordingID)
		}
		if err := json.Unmarshal([]byte(row.EntriesJSON), &rec.Entries); err != nil {
			return rec, fmt.Errorf("解析录制 %s 的条目失败: %w", row.RecordingID, err)
		}
	}
	for _, id := range stringArray(gjson.Parse(row.OriginGroupIDsJSON)) {
		rec.OriginGroupIDs = append(rec.OriginGroupIDs, model.OriginGroupID(id))
	}
	return rec, nil
}

func toSettings(p model.Persisted) ([]Setting, error) {
	filters, err := json.Marshal(p.RecordFilters)
	if err != nil {
		return nil, err
	}
	patterns, err := json.Marshal(nonNil(p.IgnorePatterns))
	if err != nil {
		return nil, err
	}
	replays := p.ActiveReplays
	if replays == nil {
		replays = map[model.RecordingID]model.TargetID{}
	}
	replaysJSON, err := json.Marshal(replays)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return []Setting{
		{Key: SettingKeyRecordFilters, Value: string(filters), UpdatedAt: now},
		{Key: SettingKeyIgnorePatterns, Value: string(patterns), UpdatedAt: now},
		{Key: SettingKeyActiveReplays, Value: string(replaysJSON), UpdatedAt: now},
	}, nil
}

// stringArray 读取 JSON 字符串数组，非数组返回空切片
func stringArray(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		out = append(out, item.String())
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
