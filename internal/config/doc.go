// Package config loads the gateway's YAML configuration.
//
// Config files support ${VAR_NAME} environment variable expansion, which
// is how the Gemini API key normally reaches the process. Optional fields
// get defaults; duration fields are parsed from their raw string form.
package config
