package catalog

import (
	"regexp"
	"sort"
	"strings"
)

// 非聊天模型族，按子串过滤
var chatDenylist = []string{
	"whisper", "tts", "dall-e", "embedding", "moderation", "davinci",
	"babbage", "audio", "realtime", "transcribe", "image", "sora",
}

// 优先级从高到低；先命中者生效
var rankTiers = []string{"5.2-pro", "5.2", "5.1", "gpt-5", "4.1", "4o"}

var reasoningModel = regexp.MustCompile(`(^|[-/])o\d`)

// FilterChatModels 去掉 denylist 中的模型族，保持输入顺序。
func FilterChatModels(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		lower := strings.ToLower(id)
		denied := false
		for _, bad := range chatDenylist {
			if strings.Contains(lower, bad) {
				denied = true
				break
			}
		}
		if !denied && id != "" {
			out = append(out, id)
		}
	}
	return out
}

func tierOf(id string) int {
	lower := strings.ToLower(id)
	for i, t := range rankTiers {
		if strings.Contains(lower, t) {
			return i
		}
	}
	if reasoningModel.MatchString(lower) {
		return len(rankTiers)
	}
	return len(rankTiers) + 1
}

// CompareModels 定义模型优先级全序：先按层级，再按字典序。
func CompareModels(a, b string) int {
	ta, tb := tierOf(a), tierOf(b)
	switch {
	case ta < tb:
		return -1
	case ta > tb:
		return 1
	}
	return strings.Compare(a, b)
}

// RankModels returns a sorted copy of ids.
func RankModels(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool { return CompareModels(out[i], out[j]) < 0 })
	return out
}
