// Package migrations はデータベースのスキーマ定義を埋め込みで提供する。
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var files embed.FS

// For は方言に対応するマイグレーションファイル群を返す。
// SQLiteのドライバは型名がdatetimeそのものの列しか時刻として読み戻さないため専用の定義を持つ。
func For(dialect string) (fs.FS, error) {
	switch dialect {
	case "postgres", "sqlite":
		return fs.Sub(files, dialect)
	default:
		return fs.Sub(files, "mysql")
	}
}
