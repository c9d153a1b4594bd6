package api

import (
	"net/http"

	"github.com/supplysql/supplysql/internal/examples"
)

type schemaColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type schemaTable struct {
	Name    string         `json:"name"`
	Columns []schemaColumn `json:"columns"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	service, ok := resolveAssistant(deps, w, r)
	if !ok {
		return
	}
	tables, err := service.Schema(r.Context())
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	out := make([]schemaTable, 0, len(tables))
	for _, table := range tables {
		columns := make([]schemaColumn, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, schemaColumn{Name: column.Name, Type: column.Type, Nullable: column.Nullable})
		}
		out = append(out, schemaTable{Name: table.Name, Columns: columns})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect": service.Dialect(),
		"tables":  out,
	})
}

func handleExamples(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	service, ok := resolveAssistant(deps, w, r)
	if !ok {
		return
	}
	items := service.Examples()
	if items == nil {
		items = []examples.Example{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(items),
		"examples": items,
	})
}
