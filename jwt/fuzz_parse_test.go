package jwt

import (
	"testing"
	"time"
)

// FuzzParse feeds arbitrary strings to the parser. Invalid input must be
// rejected with ErrInvalidToken and never panic.
func FuzzParse(f *testing.F) {
	mgr, err := NewManager(Config{
		Secret:       []byte("fuzz-secret-fuzz-secret-fuzz-sec"),
		SessionTTL:   time.Hour,
		LongLivedTTL: 2 * time.Hour,
		Issuer:       "fuzz",
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := mgr.Issue("uid1", "user", ClassSession)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := mgr.Parse(token)
		if err == nil && claims == nil {
			t.Fatal("nil claims without error")
		}
	})
}
