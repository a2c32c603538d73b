package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
	"github.com/tidwall/sjson"

	"reqreplay/pkg/model"
)

var sjsonEscaper = strings.NewReplacer(
	`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, ":", `\:`,
)

// UpdateEntry 将 updates 按 JSON 字段名浅合并到条目上，越界或合并结果无效时不变
func (s State) UpdateEntry(id model.RecordingID, index int, updates map[string]any) State {
	if len(updates) == 0 {
		return s
	}
	return s.withEntry(id, index, func(e *model.Entry) bool {
		merged, err := mergeEntry(*e, updates)
		if err != nil {
			return false
		}
		_, bodyUpdated := updates["body"]
		syncVariant(&merged, bodyUpdated)
		*e = merged
		return true
	})
}

func mergeEntry(e model.Entry, updates map[string]any) (model.Entry, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return e, err
	}
	keys := bulk.MapKeysSlice(updates)
	slices.Sort(keys)
	for _, k := range keys {
		if data, err = sjson.SetBytes(data, sjsonEscaper.Replace(k), updates[k]); err != nil {
			return e, fmt.Errorf("合并字段 %s 失败: %w", k, err)
		}
	}
	var out model.Entry
	if err := json.Unmarshal(data, &out); err != nil {
		return e, err
	}
	return out, nil
}

// syncVariant 维持 body 与当前变体一致；bodyWins 为 true 时以 body 覆盖当前变体
func syncVariant(e *model.Entry, bodyWins bool) {
	if len(e.BodyVariants) == 0 {
		e.BodyVariants = nil
		e.ActiveVariant = nil
		return
	}
	active := 0
	if e.ActiveVariant != nil {
		active = min(max(*e.ActiveVariant, 0), len(e.BodyVariants)-1)
	}
	e.ActiveVariant = &active
	if bodyWins {
		e.BodyVariants[active].Body = e.Body
	} else {
		e.Body = e.BodyVariants[active].Body
	}
}

// DeleteEntry 删除条目
func (s State) DeleteEntry(id model.RecordingID, index int) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		if index < 0 || index >= len(r.Entries) {
			return false
		}
		r.Entries = slices.Delete(r.Entries, index, index+1)
		return true
	})
}

// ToggleEntry 切换条目的禁用状态
func (s State) ToggleEntry(id model.RecordingID, index int) State {
	return s.withEntry(id, index, func(e *model.Entry) bool {
		e.Disabled = !e.Disabled
		return true
	})
}

// ToggleAllEntries 将所有条目设为同一禁用状态
func (s State) ToggleAllEntries(id model.RecordingID, disabled bool) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		for i := range r.Entries {
			r.Entries[i].Disabled = disabled
		}
		return true
	})
}

// SoloEntry 只启用指定条目；该条目已处于独奏状态时重新启用全部条目
func (s State) SoloEntry(id model.RecordingID, index int) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		if index < 0 || index >= len(r.Entries) {
			return false
		}
		soloed := !r.Entries[index].Disabled
		for i := range r.Entries {
			if i != index && !r.Entries[i].Disabled {
				soloed = false
				break
			}
		}
		for i := range r.Entries {
			r.Entries[i].Disabled = !soloed && i != index
		}
		return true
	})
}

// DedupeEntries 删除 URL 重复的后续条目，保留首次出现者
func (s State) DedupeEntries(id model.RecordingID) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		seen := make(map[string]struct{}, len(r.Entries))
		kept := bulk.SliceFilter(func(e model.Entry) bool {
			if _, ok := seen[e.URL]; ok {
				return false
			}
			seen[e.URL] = struct{}{}
			return true
		}, r.Entries)
		if len(kept) == len(r.Entries) {
			return false
		}
		r.Entries = kept
		return true
	})
}

// SetActiveVariant 切换当前变体并同步 body
func (s State) SetActiveVariant(id model.RecordingID, index, variant int) State {
	return s.withEntry(id, index, func(e *model.Entry) bool {
		if variant < 0 || variant >= len(e.BodyVariants) {
			return false
		}
		e.ActiveVariant = &variant
		e.Body = e.BodyVariants[variant].Body
		return true
	})
}

// AddVariant 追加变体并设为当前；条目首次添加变体时先以现有 body 生成 default 变体
func (s State) AddVariant(id model.RecordingID, index int, name, body string) State {
	return s.withEntry(id, index, func(e *model.Entry) bool {
		if len(e.BodyVariants) == 0 {
			e.BodyVariants = []model.BodyVariant{{Name: "default", Body: e.Body}}
		}
		if name == "" {
			name = fmt.Sprintf("variant %d", len(e.BodyVariants)+1)
		}
		e.BodyVariants = append(e.BodyVariants, model.BodyVariant{Name: name, Body: body})
		active := len(e.BodyVariants) - 1
		e.ActiveVariant = &active
		e.Body = body
		return true
	})
}

// DeleteVariant 删除变体；删除最后一个变体时条目恢复为普通条目并保留当前 body
func (s State) DeleteVariant(id model.RecordingID, index, variant int) State {
	return s.withEntry(id, index, func(e *model.Entry) bool {
		if variant < 0 || variant >= len(e.BodyVariants) {
			return false
		}
		active := 0
		if e.ActiveVariant != nil {
			active = *e.ActiveVariant
		}
		e.BodyVariants = slices.Delete(e.BodyVariants, variant, variant+1)
		if len(e.BodyVariants) == 0 {
			e.BodyVariants = nil
			e.ActiveVariant = nil
			return true
		}
		if active > variant {
			active--
		}
		e.ActiveVariant = &active
		syncVariant(e, false)
		return true
	})
}

// RenameVariant 重命名变体
func (s State) RenameVariant(id model.RecordingID, index, variant int, name string) State {
	return s.withEntry(id, index, func(e *model.Entry) bool {
		if variant < 0 || variant >= len(e.BodyVariants) || name == "" {
			return false
		}
		e.BodyVariants[variant].Name = name
		return true
	})
}
