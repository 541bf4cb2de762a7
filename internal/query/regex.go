package query

import (
	"fmt"
	"regexp"
)

// CompileRegexMode compiles q as a regular expression for regex mode. An
// invalid pattern is reported as ErrQueryInvalid.
func CompileRegexMode(q string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryInvalid, err)
	}
	return re, nil
}
