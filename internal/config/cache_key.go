package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ImportStateKey returns the cache key holding an import job's status and report
func (r *CacheKeyStruct) ImportStateKey(importID string) string {
	return fmt.Sprintf("import:%s:state", importID)
}

// ImportProgressChannel returns the Redis PubSub channel name for an import's progress
func (r *CacheKeyStruct) ImportProgressChannel(importID string) string {
	return fmt.Sprintf("import:%s:progress", importID)
}

var CacheKey = NewCacheKeyStruct()
