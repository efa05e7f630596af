package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("```(?:json)?")

// decodeJSONObject 从模型回复中截取第一个 "{" 到最后一个 "}" 并解码，
// 可容忍 markdown 代码块与前后说明文字。
func decodeJSONObject(text string, out any) error {
	text = codeFence.ReplaceAllString(text, "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return errors.New("no json object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("decode response json: %w", err)
	}
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
