//go:build !linux && !darwin
// +build !linux,!darwin

package linesort

func defaultMaxOpenFiles() int {
	return fanInFromLimit(256)
}
