package rules

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/JonMunkholm/tbcheck/internal/table"
)

// TableImportPath is the import path rule sources use for the table package.
const TableImportPath = "tbcheck/table"

// tableSymbols exposes internal/table to interpreted code.
var tableSymbols = interp.Exports{
	TableImportPath + "/table": {
		"New":         reflect.ValueOf(table.New),
		"Empty":       reflect.ValueOf(table.Empty),
		"Normalize":   reflect.ValueOf(table.Normalize),
		"AsFloat":     reflect.ValueOf(table.AsFloat),
		"FormatValue": reflect.ValueOf(table.FormatValue),
		"ValuesEqual": reflect.ValueOf(table.ValuesEqual),

		"Table": reflect.ValueOf((*table.Table)(nil)),
		"Row":   reflect.ValueOf((*table.Row)(nil)),
		"Value": reflect.ValueOf((*table.Value)(nil)),
	},
}

var (
	tableType = reflect.TypeOf((*table.Table)(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)
