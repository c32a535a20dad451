package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindRetriable(t *testing.T) {
	retriable := []ErrorKind{ErrRateLimited, ErrHTTP5xx, ErrNetwork, ErrTimeout}
	for _, k := range retriable {
		assert.True(t, k.Retriable(), string(k))
	}
	terminal := []ErrorKind{ErrNone, ErrMissingKey, ErrHTTP4xx, ErrEmpty, ErrMissingPrice, ErrSchema}
	for _, k := range terminal {
		assert.False(t, k.Retriable(), string(k))
	}
}

func TestResultNote(t *testing.T) {
	ok := Ok("data", 10*time.Millisecond)
	assert.Empty(t, ok.Note("gdelt"))

	fail := Fail[string](ErrHTTP5xx, "status 502", 0)
	assert.Equal(t, "gdelt_error:http_5xx:status 502", fail.Note("gdelt"))

	bare := Fail[string](ErrEmpty, "", 0)
	assert.Equal(t, "finnhub_error:empty", bare.Note("finnhub"))
}
