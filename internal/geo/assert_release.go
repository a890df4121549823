//go:build !copytopoints_debug

package geo

const debugAsserts = false
