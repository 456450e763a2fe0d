// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// DataKeySize はファイル暗号化に使うデータ鍵の長さ（AES-256）。
const DataKeySize = 32

// Algorithm はラップ鍵を生成した鍵カプセル化方式を表す。
type Algorithm string

const (
	// AlgorithmMLKEM768 は耐量子KEM（ML-KEM-768）を表す。
	AlgorithmMLKEM768 Algorithm = "ml-kem-768"
	// AlgorithmRSAOAEP は古典方式（RSA-OAEP-2048/SHA-256）を表す。
	AlgorithmRSAOAEP Algorithm = "rsa-oaep-2048"
)

// Valid は既知の方式かどうかを返す。
func (a Algorithm) Valid() bool {
	return a == AlgorithmMLKEM768 || a == AlgorithmRSAOAEP
}

// Permission は共有先に与える権限を表す。
type Permission string

const (
	// PermissionRead は閲覧のみを許可する。
	PermissionRead Permission = "read"
	// PermissionWrite は閲覧と削除を許可する。
	PermissionWrite Permission = "write"
)

// Valid は既知の権限かどうかを返す。
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Action は認可対象の操作を表す。
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write" // 削除を含む
	ActionShare Action = "share"
)

// FileMetadata はファイルの付帯情報。
type FileMetadata struct {
	Name     string
	MimeType string
	Size     int64
}

// EncryptedFile は暗号化済みファイルのエンティティ。
// 所有者のラップ鍵はファイルが存在する限り常に保持される。
type EncryptedFile struct {
	ID          string
	OwnerID     string
	Ciphertext  []byte
	IV          []byte
	AuthTag     []byte
	WrappedKey  []byte // 所有者の公開鍵でラップされたデータ鍵
	Algorithm   Algorithm
	Metadata    FileMetadata
	IsHoneyfile bool
	Triggered   bool // false→true の一方向のみ
	BlobRef     string
	CreatedAt   time.Time
}

// IsOwner は指定ユーザーが所有者かどうかを返す。
func (f *EncryptedFile) IsOwner(userID string) bool {
	return f.OwnerID == userID
}

// KeyGrant は共有先ごとのラップ鍵と権限を表す。
// 有効期限は作成後に変更されない。取り消しはレコード削除で行う。
type KeyGrant struct {
	ID         string
	FileID     string
	GranteeID  string
	WrappedKey []byte
	Algorithm  Algorithm
	Permission Permission
	ExpiresAt  *time.Time
	GrantedAt  time.Time
}

// Expired は指定時刻において期限切れかどうかを返す。
func (g *KeyGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// ResolvedKey は要求者向けに解決されたラップ鍵。
type ResolvedKey struct {
	FileID     string
	WrappedKey []byte
	Algorithm  Algorithm
}

// FileSummary は一覧表示用のメタデータ（暗号文・鍵を含まない）。
type FileSummary struct {
	ID          string
	OwnerID     string
	Metadata    FileMetadata
	IsHoneyfile bool
	CreatedAt   time.Time
}

// User は外部ID基盤が管理するユーザーのうち、コアが参照する公開鍵情報。
type User struct {
	ID        string
	Username  string
	PublicKey []byte
	Algorithm Algorithm
	CreatedAt time.Time
	UpdatedAt time.Time
}
