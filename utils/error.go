package utils

import "errors"

// ErrorRecordNotFound is the lookup-miss sentinel returned by the generic
// fetch helpers and by-id queries.
var ErrorRecordNotFound = errors.New("record not found")
