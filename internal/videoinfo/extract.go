package videoinfo

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// lengthSecondsPattern はプレイヤー設定JSONに埋め込まれた再生時間。
var lengthSecondsPattern = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)

// isoDurationPattern はISO 8601形式の期間（PT1H2M3S）。
var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ExtractDuration は動画ページのHTMLから再生時間（秒）を抽出する。
// <meta itemprop="duration"> を優先し、見つからない場合はlengthSecondsを探す。
// YouTubeはmetaをbody内に置くため、head以外も走査する。
func ExtractDuration(body []byte) (int, bool) {
	if seconds, ok := durationFromMeta(body); ok {
		return seconds, true
	}
	if m := lengthSecondsPattern.FindSubmatch(body); m != nil {
		return parseSeconds(string(m[1]))
	}
	return 0, false
}

func durationFromMeta(body []byte) (int, bool) {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return 0, false

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "meta" || !hasAttr {
				continue
			}

			var itemprop, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "itemprop":
					itemprop = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}
			if itemprop == "duration" {
				return ParseISODuration(content)
			}
		}
	}
}

// ParseISODuration はISO 8601形式の期間を秒に変換する。
// 日・時・分・秒の要素のみ対応する（年・月・週は扱わない）。
func ParseISODuration(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "P" || s == "PT" {
		return 0, false
	}
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	multipliers := []int{86400, 3600, 60, 1}
	total := 0
	for i, mul := range multipliers {
		if m[i+1] == "" {
			continue
		}
		n, ok := parseSeconds(m[i+1])
		if !ok {
			return 0, false
		}
		total += n * mul
	}
	return total, true
}
