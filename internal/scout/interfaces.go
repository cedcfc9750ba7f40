package scout

import (
	"context"
	"time"
)

// Scanner is the boundary to the external reconnaissance engine. Scan starts
// a run and returns its event stream; the engine closes the channel after
// sending exactly one terminal event. Cancellation is cooperative via ctx.
type Scanner interface {
	Scan(ctx context.Context, params Parameters) (<-chan ScanEvent, error)
	Reload(ctx context.Context) error
}

// RecordStore persists whitelist entries, settings, and search history.
// Reads must reflect the most recent committed write; permission decisions
// depend on it.
type RecordStore interface {
	AddWhitelist(ctx context.Context, entry WhitelistEntry) (bool, error)
	RemoveWhitelist(ctx context.Context, userID string) (bool, error)
	IsWhitelisted(ctx context.Context, userID string) (bool, error)
	ListWhitelist(ctx context.Context) ([]WhitelistEntry, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) (bool, error)
	AllSettings(ctx context.Context) (map[string]string, error)

	RecordSearch(ctx context.Context, rec SearchRecord) error

	Close() error
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Settings keys shared between the owner commands and the components that
// read them. Values live in the record store so owner edits survive restarts
// and take effect without one.
const (
	SettingDebugChannel   = "log_channel.debug"
	SettingUserChannel    = "log_channel.user"
	SettingOutputChannel  = "log_channel.output"
	SettingFileLogs       = "file_logs_enabled"
	SettingTopSites       = "defaults.top_sites"
	SettingSiteTimeout    = "defaults.site_timeout_seconds"
	SettingMaxConnections = "defaults.max_connections"
	SettingRetries        = "defaults.retries"
	SettingParsing        = "defaults.parsing_enabled"
	SettingIncludeSimilar = "defaults.include_similar"
)

// SettingKeyForKind maps a log kind to its destination-channel setting.
func SettingKeyForKind(kind LogKind) string {
	switch kind {
	case LogKindDebug:
		return SettingDebugChannel
	case LogKindUser:
		return SettingUserChannel
	case LogKindOutput:
		return SettingOutputChannel
	default:
		return ""
	}
}
