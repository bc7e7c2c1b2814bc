// Package version хранит сведения о сборке, заполняемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/shopbilling/internal/version.version=v1.2.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// String — строка для флага -version.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// Fields возвращает сведения о сборке для структурированного лога.
func Fields() map[string]any {
	return map[string]any{
		"version": version,
		"commit":  commit,
		"built":   date,
	}
}
