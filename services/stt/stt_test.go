package stt

import (
	"testing"
	"unicode/utf8"

	"github.com/matryer/is"
)

func TestTrimToRuneBoundary(t *testing.T) {
	is := is.New(t)

	is.Equal(TrimToRuneBoundary("hello", 10), "hello")
	is.Equal(TrimToRuneBoundary("hello", 3), "hel")
	is.Equal(TrimToRuneBoundary("hello", 0), "")

	// "héllo": é is 2 bytes; cutting at 2 lands mid-rune.
	s := "héllo"
	out := TrimToRuneBoundary(s, 2)
	is.Equal(out, "h")
	is.True(utf8.ValidString(out))

	// CJK: 3 bytes per rune.
	s = "你好吗"
	for n := 0; n <= len(s); n++ {
		is.True(utf8.ValidString(TrimToRuneBoundary(s, n)))
	}
}

func TestDropLastRunes(t *testing.T) {
	is := is.New(t)

	is.Equal(DropLastRunes("hello", 0), "hello")
	is.Equal(DropLastRunes("hello", -1), "hello")
	is.Equal(DropLastRunes("hello", 2), "hel")
	is.Equal(DropLastRunes("hello", 5), "")
	is.Equal(DropLastRunes("hello", 99), "")

	is.Equal(DropLastRunes("你好吗", 1), "你好")
	is.Equal(DropLastRunes("aé你", 2), "a")
}
