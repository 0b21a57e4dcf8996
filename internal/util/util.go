package util

import "strings"

func IfEmptyElse(str string, def string) string {
	if strings.TrimSpace(str) == "" {
		return def
	}
	return str
}
