// Package config loads runtime settings from REGSYS_* environment variables and
// an optional YAML file. Environment values take precedence over the file.
//
// The encryption parameters of the license codec are deliberately absent:
// changing them would invalidate every license already issued.
package config
