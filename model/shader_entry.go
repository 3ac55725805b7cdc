package model

import "gorm.io/plugin/soft_delete"

// ShaderEntry is a cache file published to the shared shader cache.
type ShaderEntry struct {
	ID int64 `json:"id" gorm:"primarykey"`
	// Cache file name, "<hash name>.vs4" or ".ps4".
	Name string `json:"name" gorm:"index:idx_name,unique"`
	// "function::class" of the permutation.
	Identifier string `json:"identifier" gorm:"index:idx_identifier"`
	// 0 vertex, 1 pixel.
	Stage int `json:"stage"`
	// Top level script the permutation was generated from.
	Script  string `json:"script"`
	Sources int    `json:"sources"`
	Size    int64  `json:"size"`
	// Who uploaded it.
	Instance        string `json:"instance"`
	CreatedAt       int64  `json:"created_at"`
	LastAccess      int64  `json:"last_access" gorm:"index:idx_last_access"`
	ExpiredDuration int64  `json:"expired_duration"`
	/* 0 false 1 true */
	Deleted soft_delete.DeletedAt `json:"-" gorm:"softDelete:flag;default:0"`
}

func (ShaderEntry) TableName() string {
	return "shader_entry"
}
