package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromURL_Trackable(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com/page", "example.com"},
		{"http://blog.test.org/post/123", "blog.test.org"},
		{"https://example.com", "example.com"},
		{"https://example.com:8443/x?y=1#z", "example.com"},
		{"HTTPS://WWW.Example.COM/", "example.com"},
		{"https://www.www.example.com", "www.example.com"},
		{"http://wwwexample.com", "wwwexample.com"},
		{"  https://news.example/  ", "news.example"},
		{"http://127.0.0.1:3000/", "127.0.0.1"},
		{"https://bücher.de/katalog", "xn--bcher-kva.de"},
		{"https://WWW.Bücher.DE/", "xn--bcher-kva.de"},
		{"https://xn--bcher-kva.de/", "xn--bcher-kva.de"},
		{"http://[::1]:8080/", "[::1]"},
		{"http://[2001:DB8::1]/", "[2001:db8::1]"},
		{"https://my_host.local/", "my_host.local"},
		{"https://r3---sn-abc.example/", "r3---sn-abc.example"},
	}

	for _, tc := range tests {
		got, ok := FromURL(tc.url)
		assert.True(t, ok, "url %q should be trackable", tc.url)
		assert.Equal(t, tc.expected, got, "domain for %s", tc.url)
	}
}

func TestFromURL_NotTrackable(t *testing.T) {
	urls := []string{
		"",
		"chrome://extensions",
		"chrome-extension://abcdef/popup.html",
		"about:blank",
		"file:///home/user/index.html",
		"ftp://files.example.com",
		"example.com",
		"://missing-scheme",
		"http://",
		"https://www./",
		"http://[::1",
	}

	for _, u := range urls {
		got, ok := FromURL(u)
		assert.False(t, ok, "url %q should not be trackable", u)
		assert.Empty(t, got)
	}
}

func TestSet_NormalisesEntries(t *testing.T) {
	s := NewSet([]string{"www.Example.com", " news.example ", ""})

	assert.True(t, s.Contains("example.com"))
	assert.True(t, s.Contains("news.example"))
	assert.False(t, s.Contains(""))
	assert.False(t, s.Contains("other.example"))

	idn := NewSet([]string{"www.Bücher.de"})
	assert.True(t, idn.Contains("xn--bcher-kva.de"))
	assert.Len(t, s, 2)
}
