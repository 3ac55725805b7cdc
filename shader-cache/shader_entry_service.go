package main

import (
	"os"
	"time"

	"gorm.io/gorm"
	"surface-shader-go/model"
)

// SaveShaderEntry stores a new entry. Rows soft deleted under the same
// name by an earlier clean are purged first so the unique name index
// does not reject the upload.
func SaveShaderEntry(entry *model.ShaderEntry) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("`name`=? AND `deleted`=1", entry.Name).
			Delete(&model.ShaderEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func CheckEntryExist(name string) (bool, error) {
	var cnt int64 = 0
	if err := DB.Model(&model.ShaderEntry{}).Where("`name`=?", name).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func UpdateFileAccess(name string) error {
	now := time.Now()
	if err := DB.Model(&model.ShaderEntry{}).Where("`name`=?", name).
		Update("last_access", now.Unix()).Error; err != nil {
		return err
	}
	return nil
}

// FindEntriesByIdentifier lists the permutations of a "function::class"
// identifier, most recently used first.
func FindEntriesByIdentifier(identifier string, limit int) ([]*model.ShaderEntry, error) {
	var items []*model.ShaderEntry
	if err := DB.Model(&model.ShaderEntry{}).Where("`identifier`=?", identifier).
		Order("last_access desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, os.ErrNotExist
	}
	return items, nil
}

func FindExpiredWithLimit(limit int) ([]*model.ShaderEntry, error) {
	var expired []*model.ShaderEntry
	now := time.Now().Unix()
	if err := DB.Model(&model.ShaderEntry{}).Where("`last_access`+`expired_duration` < ?", now).
		Limit(limit).Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}

func UpdateExpiredCleanResult(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := DB.Model(&model.ShaderEntry{}).Delete(&model.ShaderEntry{}, ids).Error; err != nil {
		return err
	}
	return nil
}
