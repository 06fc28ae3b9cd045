// Package config defines the deployment layout and update settings shared by
// the gamewarden commands, with helpers to load, validate and save them in
// YAML format.
package config
