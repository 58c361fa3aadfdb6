package docgate_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/docgate"
)

func BenchmarkAuthenticate(b *testing.B) {
	env, cleanup := newTestEnv(b, nil)
	defer cleanup()

	env.registerVerified(b, "bench@example.com", "correct-password-123")
	res := env.login(b, "bench@example.com", "correct-password-123")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Authenticate(context.Background(), res.Grant.Token); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkCheckRequest(b *testing.B) {
	env, cleanup := newTestEnv(b, nil)
	defer cleanup()

	r := httptest.NewRequest("GET", "/api/users/me", nil)
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("User-Agent", "bench/1.0")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ip := fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
		if d := env.engine.CheckRequest(context.Background(), r, ip); d.Verdict != docgate.Admit {
			b.Fatalf("unexpected verdict %v: %v", d.Verdict, d.Err)
		}
	}
}

func BenchmarkConsumeCredit(b *testing.B) {
	env, cleanup := newTestEnv(b, func(cfg *docgate.Config) {
		cfg.Credits.DailyLimit = 1 << 30
	})
	defer cleanup()

	u := env.registerVerified(b, "credits@example.com", "correct-password-123")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.ConsumeCredit(context.Background(), u.ID); err != nil {
			b.Fatalf("consume failed: %v", err)
		}
	}
}
