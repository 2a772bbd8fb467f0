// Package config loads pipeline settings from JSON or YAML files.
//
// Every field is optional: a nil pointer means "use the default", and the
// Get* accessors apply those defaults. Files are checked against an embedded
// JSON Schema before they are decoded and validated.
package config
