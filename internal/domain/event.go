package domain

import "time"

// AuditAction はセキュリティイベントの種別。
type AuditAction string

const (
	AuditUpload             AuditAction = "UPLOAD"
	AuditDownload           AuditAction = "DOWNLOAD"
	AuditShare              AuditAction = "SHARE"
	AuditRevoke             AuditAction = "REVOKE"
	AuditDelete             AuditAction = "DELETE"
	AuditAccess             AuditAction = "ACCESS"
	AuditHoneyfileTriggered AuditAction = "HONEYFILE_TRIGGERED"
)

// SecurityEvent は監査証跡へ送出されるイベント。コア自身は保持しない。
type SecurityEvent struct {
	ID        string
	ActorID   string // 空文字は匿名
	Action    AuditAction
	FileID    string // 空文字はファイル非関連
	Detail    string
	Timestamp time.Time
}

// HoneyfileStats はハニーファイルの統計情報。
type HoneyfileStats struct {
	Total    int64
	Sprung   int64
	Triggers []*SecurityEvent
}
