package util

import (
	"net/url"
	"strconv"
)

// GetQueryParam returns the first value of key in the URL query, or defaultValue when it is absent.
func GetQueryParam(u *url.URL, key string, defaultValue string) string {
	if u == nil {
		return defaultValue
	}

	value := u.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	return value
}

// GetQueryParamInt is GetQueryParam for integer values. Unparsable values fall back to defaultValue.
func GetQueryParamInt(u *url.URL, key string, defaultValue int) int {
	value := GetQueryParam(u, key, "")
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return i
}
