package catalog

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRankModels_StaticListIsAlreadyRanked(t *testing.T) {
	static := MustLookup(KindOpenAI).StaticModels()
	assert.Equal(t, static, RankModels(static))
}

func TestRankModels_Tiers(t *testing.T) {
	in := []string{"gpt-3.5-turbo", "o3-mini", "gpt-4o", "gpt-4.1", "gpt-5", "gpt-5.1", "gpt-5.2", "gpt-5.2-pro", "chatgpt-4o-latest"}
	want := []string{"gpt-5.2-pro", "gpt-5.2", "gpt-5.1", "gpt-5", "gpt-4.1", "chatgpt-4o-latest", "gpt-4o", "o3-mini", "gpt-3.5-turbo"}
	assert.Equal(t, want, RankModels(in))
}

func TestFilterChatModels(t *testing.T) {
	in := []string{"gpt-4o", "whisper-1", "tts-1-hd", "dall-e-3", "text-embedding-3-small", "omni-moderation-latest",
		"davinci-002", "babbage-002", "gpt-4o-audio-preview", "gpt-4o-realtime-preview", "gpt-4o-transcribe",
		"gpt-image-1", "sora-2", "o3"}
	assert.Equal(t, []string{"gpt-4o", "o3"}, FilterChatModels(in))
}

func modelID() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.SampledFrom([]string{"gpt-5.2-pro", "gpt-5.2", "gpt-5.1", "gpt-5", "gpt-4.1-mini", "gpt-4o", "o1", "o4-mini", "gpt-3.5-turbo"}),
		rapid.StringMatching(`(gpt-)?[a-z0-9.\-]{1,12}`),
	)
}

func TestCompareModels_IsTotalOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, b, c := modelID().Draw(t, "a"), modelID().Draw(t, "b"), modelID().Draw(t, "c")

		if CompareModels(a, b) != -CompareModels(b, a) {
			t.Fatalf("antisymmetry violated for %q %q", a, b)
		}
		if (CompareModels(a, b) == 0) != (a == b) {
			t.Fatalf("distinct ids compare equal: %q %q", a, b)
		}
		if CompareModels(a, b) <= 0 && CompareModels(b, c) <= 0 && CompareModels(a, c) > 0 {
			t.Fatalf("transitivity violated for %q %q %q", a, b, c)
		}
	})
}

func TestRankModels_PermutationInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOf(modelID()).Draw(t, "ids")
		a := RankModels(ids)

		shuffled := append([]string(nil), ids...)
		perm := rapid.Permutation(shuffled).Draw(t, "perm")
		b := RankModels(perm)

		if !sort.SliceIsSorted(a, func(i, j int) bool { return CompareModels(a[i], a[j]) < 0 }) {
			t.Fatalf("not sorted: %v", a)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("order depends on input: %v vs %v", a, b)
			}
		}
	})
}

func TestRankModels_ProBeforeFourOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.StringMatching(`[a-z]{0,4}-?`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`-?[a-z]{0,4}`).Draw(t, "suffix")
		pro := prefix + "5.2-pro" + suffix
		old := prefix + "4.1" + suffix
		first := rapid.Bool().Draw(t, "order")
		in := []string{old, pro}
		if first {
			in = []string{pro, old}
		}
		if got := RankModels(in); got[0] != pro {
			t.Fatalf("expected %q first, got %v", pro, got)
		}
	})
}
