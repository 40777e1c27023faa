package translate

import (
	"strings"
	"unicode"
)

// Script-based language detection. Good enough for the skip decision: when
// the dominant script (or stopword profile) already matches the target
// language, the translation call is pointless. Ambiguous text returns ""
// and the decision defers to the model.

const (
	cyrillicThreshold = 0.3
	latinThreshold    = 0.5
	greekThreshold    = 0.2
	hangulThreshold   = 0.2
	kanaThreshold     = 0.1
	arabicThreshold   = 0.3

	stopwordRatio = 0.12
)

var stopwords = map[string]map[string]struct{}{
	"en": toSet("the and of to in is for on with as by from that this are was you"),
	"tr": toSet("bir ve bu da de için ile ne var mi mı ben sen biz çok ama"),
	"de": toSet("der die das und ist nicht ich du wir ein eine mit für auf"),
	"es": toSet("el la los las y es no que de un una con para por"),
	"fr": toSet("le la les et est pas je tu nous un une avec pour dans"),
}

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// DetectLanguage returns a short language code for text, or "" when
// detection is not confident.
func DetectLanguage(text string) string {
	var latin, cyrillic, greek, hangul, kana, han, arabic, total int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Greek, r):
			greek++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		}
	}
	if total == 0 {
		return ""
	}

	ratio := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case ratio(kana) >= kanaThreshold:
		return "ja"
	case ratio(hangul) >= hangulThreshold:
		return "ko"
	case ratio(han) >= latinThreshold:
		return "zh"
	case ratio(arabic) >= arabicThreshold:
		return "ar"
	case ratio(greek) >= greekThreshold:
		return "el"
	case ratio(cyrillic) >= cyrillicThreshold:
		return "ru"
	case ratio(latin) >= latinThreshold:
		return detectLatin(text)
	}
	return ""
}

// detectLatin disambiguates Latin-script languages by stopword profile.
// Turkish-specific letters short-circuit.
func detectLatin(text string) string {
	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, "ğışİ") {
		return "tr"
	}

	words := strings.Fields(lower)
	if len(words) == 0 {
		return ""
	}
	best, bestHits := "", 0
	for lang, set := range stopwords {
		hits := 0
		for _, w := range words {
			if _, ok := set[strings.Trim(w, ".,!?;:()\"'")]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = lang, hits
		}
	}
	if bestHits == 0 || float64(bestHits)/float64(len(words)) < stopwordRatio {
		return ""
	}
	return best
}

// hasLetters reports whether text contains at least one letter. Pure
// symbol/emoji/number regions are skipped without a model call.
func hasLetters(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
