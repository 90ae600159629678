package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed report.schema.json
var reportSchema []byte

// Validate checks doc against the schema file at schemaPath.
func Validate(schemaPath string, doc any) ([]string, error) {
	return validate(gojsonschema.NewReferenceLoader("file://"+schemaPath), schemaPath, doc)
}

// ValidateReport checks doc against the built-in report schema.
func ValidateReport(doc any) ([]string, error) {
	return validate(gojsonschema.NewBytesLoader(reportSchema), "report schema", doc)
}

func validate(schemaLoader gojsonschema.JSONLoader, name string, doc any) ([]string, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
