package domain

import "time"

// MigrationStatus はスキーマ変更の適用状態。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は1つのSQLファイルに対応するスキーマ変更。
type Migration struct {
	Version   string     // "001" など。適用順を決める
	Name      string     // ファイル名から拡張子とバージョンを除いたもの
	Path      string     // マイグレーションFS内のパス
	AppliedAt *time.Time // 未適用ならnil
	Status    MigrationStatus
}

// Applied は適用済みかを返す。
func (m *Migration) Applied() bool {
	return m.Status == MigrationStatusApplied
}
