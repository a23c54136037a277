// migrations хранит SQL-миграции схемы (формат goose) и встраивает их в бинарь.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
