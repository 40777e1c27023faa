package translate

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"the quick brown fox jumps over the lazy dog and runs", "en"},
		{"Привет, как дела у тебя сегодня?", "ru"},
		{"Merhaba, bugün nasılsın? Çok iyiyim ve sen?", "tr"},
		{"こんにちは、元気ですか", "ja"},
		{"안녕하세요 잘 지내세요", "ko"},
		{"Καλημέρα, τι κάνεις σήμερα", "el"},
		{"مرحبا كيف حالك اليوم", "ar"},
		{"12345 !!! :)", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := DetectLanguage(c.text); got != c.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestSkipDecision(t *testing.T) {
	// Same detected language as target: skipped without a model call.
	res, skipped := skipDecision("the cat sat on the mat and the dog barked", Request{
		TargetLang: "en", SourceLang: "auto", CheckIfNeeded: true,
	})
	if !skipped {
		t.Fatal("expected skip for source == target")
	}
	if !res.Skipped || res.SkipReason != "same language" || res.SourceLang != "en" {
		t.Errorf("result = %+v", res)
	}

	// Symbol-only text: skipped.
	res, skipped = skipDecision("🎉🎉🎉", Request{TargetLang: "en"})
	if !skipped || res.SkipReason != "no letters" {
		t.Errorf("emoji text: skipped=%v result=%+v", skipped, res)
	}

	// Different language: not skipped.
	if _, skipped = skipDecision("Привет, как дела у тебя?", Request{TargetLang: "en", SourceLang: "auto"}); skipped {
		t.Error("cross-language text must not be skipped")
	}

	// Ambiguous detection: defer to the model, no skip.
	if _, skipped = skipDecision("zxqv wbrm kpfl", Request{TargetLang: "en", SourceLang: "auto"}); skipped {
		t.Error("ambiguous text must not be skipped")
	}

	// Explicit source equals target: skipped regardless of content.
	if _, skipped = skipDecision("whatever words", Request{TargetLang: "de", SourceLang: "de"}); !skipped {
		t.Error("explicit source == target must skip")
	}
}
