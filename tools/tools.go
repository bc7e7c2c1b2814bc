//go:build tools

// Пакет tools фиксирует версии генераторов в go.mod.
// Моки портов пересобираются командой go generate ./internal/domain/...
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
